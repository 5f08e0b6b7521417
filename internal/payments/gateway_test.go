package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(13200), toMinor(decimal.RequireFromString("132")))
	assert.Equal(t, int64(1999), toMinor(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1), toMinor(decimal.RequireFromString("0.005")))
	assert.True(t, fromMinor(4666).Equal(decimal.RequireFromString("46.66")))
}

func TestSandboxWebhook(t *testing.T) {
	s := NewSandbox()
	_, err := s.ParseWebhook([]byte(`{"id":"evt_1","type":"payment_intent.succeeded","intent_id":"pi_1"}`), "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "unsigned webhooks are refused by default")

	s.AcceptWebhooks = true
	ev, err := s.ParseWebhook([]byte(`{"id":"evt_1","type":"payment_intent.succeeded","intent_id":"pi_1"}`), "")
	assert.NoError(t, err)
	assert.Equal(t, Event{ID: "evt_1", Type: WebhookSucceeded, IntentID: "pi_1"}, ev)

	_, err = s.ParseWebhook([]byte(`{"type":"x"}`), "")
	assert.Error(t, err)
	_, err = s.ParseWebhook([]byte(`not json`), "")
	assert.Error(t, err)
}
