package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string
	LogLevel     string

	OTelEnabled  bool
	OTelEndpoint string

	Pricing Pricing

	Progression Progression

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentTimeout      time.Duration
	// SandboxWebhooks lets the sandbox gateway accept unsigned webhooks when
	// no Stripe key is set. Off by default.
	SandboxWebhooks bool

	WorkerGroup       string
	WorkerConcurrency int
}

type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
	Currency              string
}

type Progression struct {
	Enabled      bool
	Interval     time.Duration
	ConfirmAfter time.Duration
	ProcessAfter time.Duration
	ShipAfter    time.Duration
	DeliverAfter time.Duration
}

// Load reads the environment. Malformed numbers and durations fall back to
// their defaults. An empty POSTGRES_DSN, REDIS_ADDR or KAFKA_BROKERS turns
// that backend off.
func Load() Config {
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "storefront-api"),
		LogLevel:     getenv("LOG_LEVEL", "info"),

		OTelEnabled:  getbool("OTEL_ENABLED", false),
		OTelEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		Pricing: Pricing{
			TaxRate:               getdecimal("TAX_RATE", "0.10"),
			FreeShippingThreshold: getdecimal("FREE_SHIPPING_THRESHOLD", "100"),
			FlatShipping:          getdecimal("FLAT_SHIPPING", "10"),
			Currency:              strings.ToLower(getenv("CURRENCY", "usd")),
		},

		Progression: Progression{
			Enabled:      getbool("PROGRESSION_ENABLED", true),
			Interval:     getduration("PROGRESSION_INTERVAL", time.Minute),
			ConfirmAfter: getduration("PROGRESSION_CONFIRM_AFTER", 2*time.Minute),
			ProcessAfter: getduration("PROGRESSION_PROCESS_AFTER", 5*time.Minute),
			ShipAfter:    getduration("PROGRESSION_SHIP_AFTER", 8*time.Minute),
			DeliverAfter: getduration("PROGRESSION_DELIVER_AFTER", 12*time.Minute),
		},

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentTimeout:      getduration("PAYMENT_TIMEOUT", 10*time.Second),
		SandboxWebhooks:     getbool("PAYMENTS_SANDBOX_WEBHOOKS", false),

		WorkerGroup:       getenv("WORKER_GROUP", "storefront-worker"),
		WorkerConcurrency: getint("WORKER_CONCURRENCY", 4),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func getbool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getdecimal(k, def string) decimal.Decimal {
	d, err := decimal.NewFromString(getenv(k, def))
	if err != nil || d.IsNegative() {
		return decimal.RequireFromString(def)
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
