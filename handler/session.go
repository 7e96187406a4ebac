package handler

import (
	"restaurant_order/constants"
	"restaurant_order/helper"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	input := c.Locals(constants.LOCAL_INPUT).(model.CreateSessionInput)

	session, err := h.Sessions.CreateSession(c.UserContext(), input.TableCode, input.CustomerInfo)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, session)
}

func (h *Handler) GetMySession(c *fiber.Ctx) error {
	session, _ := helper.GetSessionFromCtx(c)
	return utils.SuccessResponse(c, fiber.StatusOK, session)
}

func (h *Handler) ExtendSession(c *fiber.Ctx) error {
	session, _ := helper.GetSessionFromCtx(c)

	expiresAt, err := h.Sessions.ExtendSession(c.UserContext(), session.Token)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, model.ExtendSessionResponse{
		Token:     session.Token,
		ExpiresAt: expiresAt,
	})
}

// EndSession lets a customer leave the table early.
func (h *Handler) EndSession(c *fiber.Ctx) error {
	session, _ := helper.GetSessionFromCtx(c)

	if err := h.Sessions.ExpireSession(c.UserContext(), session.Token); err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
