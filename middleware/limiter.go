package middleware

import (
	"time"

	"restaurant_order/constants"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// SessionRateLimit caps table scans per client IP.
func SessionRateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "sessions:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.ErrorResponse(c, fiber.StatusTooManyRequests, constants.TOO_MANY_SESSIONS, nil)
		},
	})
}
