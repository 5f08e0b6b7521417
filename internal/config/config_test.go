package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "POSTGRES_DSN", "KAFKA_BROKERS", "TAX_RATE", "PROGRESSION_INTERVAL", "WORKER_CONCURRENCY", "PAYMENTS_SANDBOX_WEBHOOKS"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "0.1", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "100", cfg.Pricing.FreeShippingThreshold.String())
	assert.Equal(t, "10", cfg.Pricing.FlatShipping.String())
	assert.Equal(t, time.Minute, cfg.Progression.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Progression.ConfirmAfter)
	assert.Equal(t, 12*time.Minute, cfg.Progression.DeliverAfter)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.False(t, cfg.SandboxWebhooks)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("TAX_RATE", "0.08")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("PROGRESSION_ENABLED", "false")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("PAYMENTS_SANDBOX_WEBHOOKS", "true")

	cfg := Load()
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0.08", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "eur", cfg.Pricing.Currency)
	assert.False(t, cfg.Progression.Enabled)
	assert.Equal(t, 3*time.Second, cfg.PaymentTimeout)
	assert.True(t, cfg.SandboxWebhooks)
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("TAX_RATE", "ten percent")
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("PROGRESSION_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, "0.1", cfg.Pricing.TaxRate.String())
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, time.Minute, cfg.Progression.Interval)
}
