package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// Config returns the value of key, reading .env on first use.
func Config(key string) string {
	loadEnvOnce.Do(func() {
		// a missing .env is fine, the process env still applies
		_ = godotenv.Load(".env")
	})
	return os.Getenv(key)
}

type Settings struct {
	AppEnv  string
	Port    string
	AppUrl  string
	Origins string

	StoreDriver string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string

	RedisAddr   string
	RabbitMQUrl string

	JWTSecret string

	SessionDuration      time.Duration
	SessionSweepInterval time.Duration

	PaymentGateway               string
	Currency                     string
	StripeSecretKey              string
	StripeWebhookSecret          string
	VNPTmnCode                   string
	VNPHashSecret                string
	VNPPayUrl                    string
	VNPApiUrl                    string
	VNPReturnUrl                 string
	AutoCancelOnPaymentFailure   bool
	PendingPaymentReconcileAfter time.Duration
	PaymentReconcileSpec         string

	SubscriberQueueSize int
}

func (s Settings) IsProduction() bool {
	return s.AppEnv == "production"
}

// Load reads every setting with its default applied.
func Load() Settings {
	return Settings{
		AppEnv:  getString("APP_ENV", "development"),
		Port:    getString("PORT", "8002"),
		AppUrl:  strings.TrimRight(getString("APP_URL", "http://localhost:5173"), "/"),
		Origins: getString("CORS_ORIGINS", "http://localhost:5173"),

		StoreDriver: getString("STORE_DRIVER", "postgres"),
		DBHost:      getString("DB_HOST", "localhost"),
		DBPort:      getInt("DB_PORT", 5432),
		DBUser:      getString("DB_USER", "postgres"),
		DBPassword:  Config("DB_PASSWORD"),
		DBName:      getString("DB_NAME", "restaurant_order"),

		RedisAddr:   Config("REDIS_ADDR"),
		RabbitMQUrl: Config("RABBITMQ_URL"),

		JWTSecret: Config("JWT_SECRET"),

		SessionDuration:      getDuration("CUSTOMER_SESSION_DURATION", 2*time.Hour),
		SessionSweepInterval: getDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		PaymentGateway:               getString("PAYMENT_GATEWAY", "stripe"),
		Currency:                     getString("PAYMENT_CURRENCY", "usd"),
		StripeSecretKey:              Config("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:          Config("STRIPE_WEBHOOK_SECRET"),
		VNPTmnCode:                   Config("VNP_TMNCODE"),
		VNPHashSecret:                Config("VNP_HASHSECRET"),
		VNPPayUrl:                    getString("VNP_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VNPApiUrl:                    getString("VNP_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
		VNPReturnUrl:                 Config("VNP_RETURNURL"),
		AutoCancelOnPaymentFailure:   getBool("AUTO_CANCEL_ON_PAYMENT_FAILURE", false),
		PendingPaymentReconcileAfter: getDuration("PENDING_PAYMENT_RECONCILE_AFTER", 15*time.Minute),
		PaymentReconcileSpec:         getString("PAYMENT_RECONCILE_CRON", "@every 5m"),

		SubscriberQueueSize: getInt("SUBSCRIBER_QUEUE_SIZE", 64),
	}
}

func getString(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(Config(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(Config(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(Config(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
