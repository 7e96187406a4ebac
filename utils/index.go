package utils

import (
	"errors"

	"restaurant_order/apperror"
	"restaurant_order/constants"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var exposeInternalErrors = true

// ExposeInternalErrors controls whether INTERNAL errors carry their cause in responses.
func ExposeInternalErrors(v bool) {
	exposeInternalErrors = v
}

func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	var errMsg interface{}
	if err != nil {
		errMsg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   errMsg,
	})
}

// AppErrorResponse renders err with the status its kind maps to.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ErrorResponse(c, fe.Code, fe.Message, nil)
	}

	appErr := apperror.From(err)
	status := appErr.HTTPStatus()

	var detail interface{}
	if appErr.Err != nil && (appErr.Kind != apperror.KindInternal || exposeInternalErrors) {
		detail = appErr.Err.Error()
	}
	if status >= fiber.StatusInternalServerError {
		RequestLogger(c).Error("request failed",
			zap.String("code", appErr.Code),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	body := fiber.Map{
		"message": appErr.Message,
		"error":   detail,
		"code":    appErr.Code,
	}
	if appErr.Retryable() {
		body["retryable"] = true
	}
	return c.Status(status).JSON(body)
}

func SuccessResponse(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// RequestLogger returns the logger the request middleware stored, or a no-op logger.
func RequestLogger(c *fiber.Ctx) *zap.Logger {
	if log, ok := c.Locals(constants.LOCAL_LOGGER).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

func ApplyPagination(query *gorm.DB, limit, page *int) *gorm.DB {
	if limit != nil && *limit > 0 && page != nil && *page >= 1 {
		query = query.Limit(*limit)
		offset := *limit * (*page - 1)
		query = query.Offset(offset)
	}

	return query
}

// PageBounds returns the slice bounds ApplyPagination would select out of total rows.
func PageBounds(total int, limit, page *int) (int, int) {
	if limit == nil || *limit <= 0 || page == nil || *page < 1 {
		return 0, total
	}
	start := *limit * (*page - 1)
	if start > total {
		start = total
	}
	end := start + *limit
	if end > total {
		end = total
	}
	return start, end
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Ptr[T any](v T) *T {
	return &v
}
