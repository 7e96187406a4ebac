package handler

import (
	"errors"
	"net/url"

	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StripeWebhook verifies the Stripe-Signature header before reconciling.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	if h.Stripe == nil {
		return fiber.ErrNotFound
	}

	id, handled, err := h.Stripe.ParseWebhook(c.Body(), c.Get(constants.HEADER_STRIPE_SIG))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_WEBHOOK_SIG, err)
	}
	if !handled {
		return c.JSON(fiber.Map{"message": constants.WEBHOOK_IGNORED})
	}

	return h.reconcile(c, id)
}

// VNPayIPN answers in the RspCode format VNPay retries on.
func (h *Handler) VNPayIPN(c *fiber.Ctx) error {
	if h.VNPay == nil {
		return fiber.ErrNotFound
	}

	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return c.JSON(fiber.Map{"RspCode": "99", "Message": "Invalid request"})
	}
	txnRef, err := h.VNPay.VerifyCallback(values)
	if err != nil {
		return c.JSON(fiber.Map{"RspCode": "97", "Message": "Invalid signature"})
	}

	_, err = h.Payments.ProcessWebhook(c.UserContext(), txnRef)
	switch {
	case errors.Is(err, apperror.ErrPaymentNotFound):
		return c.JSON(fiber.Map{"RspCode": "01", "Message": "Order not found"})
	case err != nil:
		h.Log.Error("vnpay ipn failed", zap.String("txn_ref", txnRef), zap.Error(err))
		return c.JSON(fiber.Map{"RspCode": "99", "Message": "Unknown error"})
	}
	return c.JSON(fiber.Map{"RspCode": "00", "Message": "Confirm Success"})
}

// PaymentWebhook is the gateway-neutral callback: a form field "id" naming the gateway payment.
func (h *Handler) PaymentWebhook(c *fiber.Ctx) error {
	id := c.FormValue("id")
	if id == "" {
		return utils.AppErrorResponse(c, apperror.Validation("id is required"))
	}

	return h.reconcile(c, id)
}

func (h *Handler) reconcile(c *fiber.Ctx, gatewayPaymentID string) error {
	outcome, err := h.Payments.ProcessWebhook(c.UserContext(), gatewayPaymentID)
	if errors.Is(err, apperror.ErrPaymentNotFound) {
		// not ours; a non-2xx would only make the gateway retry forever
		h.Log.Info("webhook for unknown payment", zap.String("gateway_payment_id", gatewayPaymentID))
		return c.JSON(fiber.Map{"message": constants.WEBHOOK_IGNORED})
	}
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.JSON(outcome)
}
