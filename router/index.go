package router

import (
	"time"

	"restaurant_order/handler"
	"restaurant_order/middleware"
	"restaurant_order/validate"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	JWTSecret       string
	SessionScanMax  int
	SessionScanSpan time.Duration
}

func SetupRoutes(app *fiber.App, h *handler.Handler, opts Options) {
	if opts.SessionScanMax <= 0 {
		opts.SessionScanMax = 20
	}
	if opts.SessionScanSpan <= 0 {
		opts.SessionScanSpan = time.Minute
	}
	staffAuth := middleware.Protected(opts.JWTSecret)
	customer := middleware.CustomerSession(h.Sessions)

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	sessions := v1.Group("/sessions")
	sessions.Post("/", middleware.SessionRateLimit(opts.SessionScanMax, opts.SessionScanSpan), validate.CreateSession(), h.CreateSession)
	sessions.Get("/me", customer, h.GetMySession)
	sessions.Post("/me/extend", customer, h.ExtendSession)
	sessions.Delete("/me", customer, h.EndSession)

	orders := v1.Group("/orders")
	orders.Post("/", customer, validate.CreateOrder(), h.CreateOrder)
	orders.Get("/:id", customer, h.GetOrder)

	payments := v1.Group("/payments")
	payments.Post("/", customer, validate.CreatePayment(), h.CreatePayment)
	payments.Get("/:gatewayPaymentId", customer, h.GetPaymentStatus)

	webhooks := v1.Group("/webhooks")
	webhooks.Post("/stripe", h.StripeWebhook)
	webhooks.Get("/vnpay/ipn", h.VNPayIPN)
	webhooks.Post("/vnpay/ipn", h.VNPayIPN)
	webhooks.Post("/payment", h.PaymentWebhook)

	staff := v1.Group("/staff", staffAuth)
	staff.Post("/orders", validate.CreateOrder(), h.StaffCreateOrder)
	staff.Get("/orders", validate.ListOrders(), h.ListOrders)
	staff.Get("/kitchen-queue", h.KitchenQueue)
	staff.Patch("/orders/:id/status", validate.TransitionStatus(), h.TransitionStatus)
	staff.Post("/payments/:gatewayPaymentId/refund", validate.CreateRefund(), h.CreateRefund)
	staff.Get("/tables/:code/qr", h.TableQRCode)
	staff.Patch("/tables/:id/status", validate.UpdateTable(), h.UpdateTableStatus)

	v1.Get("/ws/staff", middleware.WebsocketUpgrade(opts.JWTSecret), websocket.New(h.StaffFeed))
}
