// Command kitchen-monitor follows a restaurant's live order feed from a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"restaurant_order/logger"
	"restaurant_order/model"
	"restaurant_order/realtime"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type queueResponse struct {
	Data []model.Order `json:"data"`
}

func main() {
	baseURL := flag.String("url", envOr("MONITOR_API_URL", "http://localhost:8002"), "order service base url")
	token := flag.String("token", os.Getenv("MONITOR_STAFF_TOKEN"), "staff access token")
	flag.Parse()

	log, err := logger.New(envOr("APP_ENV", "development"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *token == "" {
		log.Fatal("staff token is required (-token or MONITOR_STAFF_TOKEN)")
	}

	wsURL, err := feedURL(*baseURL, *token)
	if err != nil {
		log.Fatal("invalid url", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := realtime.NewDashboardClient(wsURL,
		func(ctx context.Context) error { return refreshQueue(*baseURL, *token, log) },
		func(env model.Envelope) {
			log.Info("event", zap.String("kind", string(env.Kind)), zap.Time("at", env.OccurredAt), zap.Any("payload", env.Payload))
		},
		realtime.ReconnectOptions{
			OnStateChange: func(s realtime.State) {
				log.Info("feed state", zap.String("state", string(s)))
				if s == realtime.StateLost {
					stop()
				}
			},
		},
		log.Named("feed"),
	)
	client.Run(ctx)
	log.Info("monitor stopped")
}

// refreshQueue reloads the kitchen queue; envelopes missed while disconnected are not replayed.
func refreshQueue(baseURL, token string, log *zap.Logger) error {
	var resp queueResponse
	code, _, errs := fiber.Get(strings.TrimRight(baseURL, "/")+"/api/v1/staff/kitchen-queue").
		Set(fiber.HeaderAuthorization, "Bearer "+token).
		Timeout(5 * time.Second).
		Struct(&resp)
	if len(errs) > 0 {
		return fmt.Errorf("fetch kitchen queue: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("fetch kitchen queue: status %d", code)
	}

	log.Info("kitchen queue", zap.Int("orders", len(resp.Data)))
	for _, o := range resp.Data {
		log.Info("queued",
			zap.String("order", o.OrderNumber),
			zap.String("status", string(o.Status)),
			zap.String("payment", string(o.PaymentStatus)),
			zap.Int("items", len(o.Items)),
		)
	}
	return nil
}

func feedURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/ws/staff"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
