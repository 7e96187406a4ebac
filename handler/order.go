package handler

import (
	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/helper"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"
)

// CreateOrder places an order for the table the caller's session is bound to.
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	req := c.Locals(constants.LOCAL_INPUT).(model.CreateOrderRequest)
	session, _ := helper.GetSessionFromCtx(c)

	var input model.CreateOrderInput
	if err := copier.Copy(&input, &req); err != nil {
		return utils.AppErrorResponse(c, apperror.Internal(err))
	}
	input.SessionToken = &session.Token
	input.PaidUpfront = false

	order, err := h.Orders.CreateOrder(c.UserContext(), input)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, order)
}

// StaffCreateOrder places an order on behalf of a table, optionally already paid at the counter.
func (h *Handler) StaffCreateOrder(c *fiber.Ctx) error {
	req := c.Locals(constants.LOCAL_INPUT).(model.CreateOrderRequest)
	staff, _ := helper.GetStaffFromCtx(c)

	var input model.CreateOrderInput
	if err := copier.Copy(&input, &req); err != nil {
		return utils.AppErrorResponse(c, apperror.Internal(err))
	}
	input.RestaurantId = staff.RestaurantId
	input.StaffId = &staff.AccountId

	order, err := h.Orders.CreateOrder(c.UserContext(), input)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, order)
}

// GetOrder returns an order placed under the caller's session.
func (h *Handler) GetOrder(c *fiber.Ctx) error {
	session, _ := helper.GetSessionFromCtx(c)

	order, err := h.Orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if order.SessionToken == nil || *order.SessionToken != session.Token {
		return utils.AppErrorResponse(c, apperror.OrderNotFound(order.ID))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}

func (h *Handler) ListOrders(c *fiber.Ctx) error {
	filter := c.Locals(constants.LOCAL_INPUT).(model.OrderFilter)
	staff, _ := helper.GetStaffFromCtx(c)

	orders, total, err := h.Orders.ListOrders(c.UserContext(), staff.RestaurantId, filter)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, model.ResponseCustom{
		Rows:       orders,
		Limit:      filter.Limit,
		Page:       filter.Page,
		TotalCount: total,
	})
}

func (h *Handler) KitchenQueue(c *fiber.Ctx) error {
	staff, _ := helper.GetStaffFromCtx(c)

	orders, err := h.Orders.GetKitchenQueue(c.UserContext(), staff.RestaurantId)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, orders)
}

func (h *Handler) TransitionStatus(c *fiber.Ctx) error {
	req := c.Locals(constants.LOCAL_INPUT).(model.TransitionStatusRequest)
	staff, _ := helper.GetStaffFromCtx(c)
	orderID := c.Params("id")

	current, err := h.Orders.GetOrder(c.UserContext(), orderID)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if current.RestaurantId != staff.RestaurantId {
		return utils.AppErrorResponse(c, apperror.OrderNotFound(orderID))
	}

	order, err := h.Orders.TransitionStatus(c.UserContext(), orderID, req.Status, req.ExpectedVersion, req.Reason)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, order)
}
