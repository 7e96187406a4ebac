package handler

import (
	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/helper"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
)

// CreatePayment starts checkout for an order placed under the caller's session.
func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	input := c.Locals(constants.LOCAL_INPUT).(model.CreatePaymentInput)
	session, _ := helper.GetSessionFromCtx(c)

	order, err := h.Orders.GetOrder(c.UserContext(), input.OrderId)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if order.SessionToken == nil || *order.SessionToken != session.Token {
		return utils.AppErrorResponse(c, apperror.OrderNotFound(input.OrderId))
	}

	handle, err := h.Payments.CreatePayment(c.UserContext(), input, c.IP())
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, handle)
}

func (h *Handler) GetPaymentStatus(c *fiber.Ctx) error {
	session, _ := helper.GetSessionFromCtx(c)

	outcome, err := h.Payments.GetPaymentStatus(c.UserContext(), c.Params("gatewayPaymentId"))
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	order, err := h.Orders.GetOrder(c.UserContext(), outcome.OrderId)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if order.SessionToken == nil || *order.SessionToken != session.Token {
		return utils.AppErrorResponse(c, apperror.PaymentNotFound(outcome.GatewayPaymentId))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, outcome)
}

func (h *Handler) CreateRefund(c *fiber.Ctx) error {
	input := c.Locals(constants.LOCAL_INPUT).(model.CreateRefundInput)
	staff, _ := helper.GetStaffFromCtx(c)
	gatewayPaymentID := c.Params("gatewayPaymentId")

	outcome, err := h.Payments.GetPaymentStatus(c.UserContext(), gatewayPaymentID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	order, err := h.Orders.GetOrder(c.UserContext(), outcome.OrderId)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if order.RestaurantId != staff.RestaurantId {
		return utils.AppErrorResponse(c, apperror.PaymentNotFound(gatewayPaymentID))
	}

	refundID, err := h.Payments.CreateRefund(c.UserContext(), gatewayPaymentID, input)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, fiber.Map{
		"gatewayPaymentId": gatewayPaymentID,
		"refundId":         refundID,
	})
}
