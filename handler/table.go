package handler

import (
	"fmt"

	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/helper"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
)

// TableQRCode serves the printable PNG customers scan to open a session.
func (h *Handler) TableQRCode(c *fiber.Ctx) error {
	staff, _ := helper.GetStaffFromCtx(c)

	table, err := h.Tables.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	if table.RestaurantId != staff.RestaurantId {
		return utils.AppErrorResponse(c, apperror.TableNotFound())
	}

	png, err := utils.GenerateQRCode(utils.TableOrderURL(h.AppUrl, table.Code), c.QueryInt("size", utils.DefaultQRSize))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.QR_GENERATION_FAILED, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", helper.QRFileName(table.Number, table.Code)))
	return c.Send(png)
}

func (h *Handler) UpdateTableStatus(c *fiber.Ctx) error {
	input := c.Locals(constants.LOCAL_INPUT).(model.UpdateTableStatusInput)
	staff, _ := helper.GetStaffFromCtx(c)

	table, err := h.Tables.SetStatus(c.UserContext(), staff.RestaurantId, c.Params("id"), input.Status)
	if err != nil {
		return utils.AppErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, table)
}
