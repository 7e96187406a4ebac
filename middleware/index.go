package middleware

import (
	"context"
	"errors"
	"strings"

	"restaurant_order/apperror"
	"restaurant_order/constants"
	"restaurant_order/helper"
	"restaurant_order/model"
	"restaurant_order/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.CustomerSession, error)
}

// Protected requires a staff JWT from the access_token cookie or an Authorization bearer header.
func Protected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("access_token")

		if token == "" {
			auth := c.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, errors.New("no token"))
		}

		claim, err := helper.ParseStaffToken(token, secret)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.INVALID_TOKEN, err)
		}

		c.Locals(constants.LOCAL_STAFF, claim)
		return c.Next()
	}
}

// CustomerSession resolves the X-Session-Token header into an active session.
func CustomerSession(sessions SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Get(constants.HEADER_SESSION_TOKEN))
		if token == "" {
			return utils.AppErrorResponse(c, apperror.Unauthorized(constants.MISSING_SESSION_TOKEN))
		}

		session, err := sessions.ValidateSession(c.UserContext(), token)
		if err != nil {
			return utils.AppErrorResponse(c, err)
		}

		c.Locals(constants.LOCAL_SESSION, session)
		return c.Next()
	}
}

// WebsocketUpgrade admits websocket upgrades carrying a valid staff JWT in the token query parameter.
func WebsocketUpgrade(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, errors.New("no token"))
		}
		claim, err := helper.ParseStaffToken(token, secret)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.INVALID_TOKEN, err)
		}

		c.Locals(constants.LOCAL_STAFF, claim)
		return c.Next()
	}
}
