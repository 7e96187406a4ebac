package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant_order/config"
	"restaurant_order/database"
	"restaurant_order/gateway"
	"restaurant_order/handler"
	"restaurant_order/helper"
	"restaurant_order/logger"
	"restaurant_order/metrics"
	"restaurant_order/middleware"
	"restaurant_order/realtime"
	"restaurant_order/repository"
	"restaurant_order/router"
	"restaurant_order/service"
	"restaurant_order/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	settings := config.Load()

	log, err := logger.New(settings.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(settings, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(settings config.Settings, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	utils.ExposeInternalErrors(!settings.IsProduction())

	store, err := openStore(settings, log)
	if err != nil {
		return err
	}
	if err := database.SeedData(ctx, store, log); err != nil {
		return err
	}

	bus := realtime.NewBus(settings.SubscriberQueueSize, log.Named("bus"))
	defer bus.Close()

	g, ctx := errgroup.WithContext(ctx)

	if settings.RedisAddr != "" {
		client, err := database.NewRedisClient(ctx, settings.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		bridge := realtime.NewRedisBridge(client, bus, log.Named("redis"))
		bus.AddSink(bridge)
		g.Go(func() error { return bridge.Run(ctx) })
	}
	if settings.RabbitMQUrl != "" {
		mq, err := database.ConnectRabbitMQ(settings.RabbitMQUrl)
		if err != nil {
			return err
		}
		defer mq.Close()
		sink, err := realtime.NewAMQPSink(mq.Channel)
		if err != nil {
			return err
		}
		bus.AddSink(sink)
	}

	gw, stripeGw, vnpayGw, err := openGateway(settings)
	if err != nil {
		return err
	}

	clock := service.SystemClock{}
	sessions := service.NewSessionManager(store, clock, service.RandomToken, settings.SessionDuration, log.Named("sessions"))
	orders := service.NewOrderEngine(store, sessions, bus, clock, log.Named("orders"))
	payments := service.NewPaymentReconciler(store, orders, gw, bus, clock, log.Named("payments"), service.PaymentOptions{
		Currency:            settings.Currency,
		AutoCancelOnFailure: settings.AutoCancelOnPaymentFailure,
	})
	tables := service.NewTableDirectory(store, bus, clock, log.Named("tables"))

	sweeper, err := helper.StartSessionSweeper(sessions, settings.SessionSweepInterval, log.Named("sweeper"))
	if err != nil {
		return err
	}
	defer sweeper.Shutdown()

	reconciler, err := helper.StartPaymentReconciler(payments, settings.PaymentReconcileSpec, settings.PendingPaymentReconcileAfter, log.Named("reconcile"))
	if err != nil {
		return err
	}
	defer reconciler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return utils.AppErrorResponse(c, err)
		},
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log.Named("http")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     settings.Origins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Session-Token, X-Request-ID",
		AllowCredentials: true,
		ExposeHeaders:    "X-Request-ID",
		MaxAge:           600,
	}))

	h := handler.New(handler.Deps{
		Sessions: sessions,
		Orders:   orders,
		Payments: payments,
		Tables:   tables,
		Bus:      bus,
		Stripe:   stripeGw,
		VNPay:    vnpayGw,
		AppUrl:   settings.AppUrl,
		Log:      log.Named("handler"),
	})
	router.SetupRoutes(app, h, router.Options{JWTSecret: settings.JWTSecret})

	g.Go(func() error {
		log.Info("listening", zap.String("port", settings.Port), zap.String("gateway", gw.Name()))
		return app.Listen(":" + settings.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		// dashboards see a going-away close and do not reconnect to this instance
		bus.Close()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(settings config.Settings, log *zap.Logger) (repository.Store, error) {
	if settings.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	db, err := database.ConnectDB(settings, log)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db), nil
}

func openGateway(settings config.Settings) (gateway.Gateway, *gateway.Stripe, *gateway.VNPay, error) {
	switch settings.PaymentGateway {
	case "stripe":
		if settings.StripeSecretKey == "" {
			return nil, nil, nil, errors.New("STRIPE_SECRET_KEY is required for the stripe gateway")
		}
		s := gateway.NewStripe(settings.StripeSecretKey, settings.StripeWebhookSecret)
		return s, s, nil, nil
	case "vnpay":
		if settings.VNPTmnCode == "" || settings.VNPHashSecret == "" {
			return nil, nil, nil, errors.New("VNP_TMNCODE and VNP_HASHSECRET are required for the vnpay gateway")
		}
		v := gateway.NewVNPay(gateway.VNPayConfig{
			TmnCode:    settings.VNPTmnCode,
			HashSecret: settings.VNPHashSecret,
			PayURL:     settings.VNPPayUrl,
			ApiURL:     settings.VNPApiUrl,
			ReturnURL:  settings.VNPReturnUrl,
		})
		return v, nil, v, nil
	default:
		return nil, nil, nil, errors.New("unknown PAYMENT_GATEWAY " + settings.PaymentGateway)
	}
}
