package handler

import (
	"context"
	"time"

	"restaurant_order/gateway"
	"restaurant_order/realtime"
	"restaurant_order/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Deps struct {
	Sessions *service.SessionManager
	Orders   *service.OrderEngine
	Payments *service.PaymentReconciler
	Tables   *service.TableDirectory
	Bus      *realtime.Bus
	Stripe   *gateway.Stripe // nil unless stripe is the active gateway
	VNPay    *gateway.VNPay  // nil unless vnpay is the active gateway
	AppUrl   string
	Log      *zap.Logger
}

type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Handler{Deps: deps}
}

// Health reports liveness and opportunistically sweeps expired sessions.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	expired, err := h.Sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		h.Log.Warn("health check cleanup failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{
		"status":          "ok",
		"expiredSessions": expired,
	})
}
