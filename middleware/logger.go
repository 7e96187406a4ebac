package middleware

import (
	"time"

	"restaurant_order/constants"
	"restaurant_order/logger"
	"restaurant_order/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLogger tags every request with an X-Request-ID, exposes a request scoped
// logger through Locals and the user context, and records access logs and metrics.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(constants.HEADER_REQUEST_ID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(constants.HEADER_REQUEST_ID, requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		c.Locals(constants.LOCAL_REQ_ID, requestID)
		c.Locals(constants.LOCAL_LOGGER, reqLog)
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))

		err := c.Next()
		if err != nil {
			// let the app error handler pick the status before we log it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		latency := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, metrics.StatusClass(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(latency.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("request", fields...)
		default:
			reqLog.Info("request", fields...)
		}
		return nil
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(constants.LOCAL_REQ_ID).(string)
	return id
}
