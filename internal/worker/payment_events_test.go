package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type memDedup struct {
	seen    map[string]bool
	seenErr error
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	return d.seen[id], d.seenErr
}

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.seen[id] = true
	return nil
}

type applier struct {
	calls []string
	err   error
}

func (a *applier) HandleEvent(_ context.Context, p orders.PaymentEventPayload, eventType string) error {
	a.calls = append(a.calls, eventType+":"+p.IntentID)
	return a.err
}

func message(t *testing.T, id, eventType string, p orders.PaymentEventPayload) kafkago.Message {
	t.Helper()
	env := orders.Envelope{EventID: id, EventType: eventType, EventVersion: 1, Payload: kafkax.MustMarshal(p)}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestPaymentEvents_AppliesOnce(t *testing.T) {
	a := &applier{}
	d := &memDedup{seen: map[string]bool{}}
	h := &PaymentEvents{Payments: a, Dedup: d}
	m := message(t, "e1", orders.EventPaymentSucceeded, orders.PaymentEventPayload{IntentID: "pi_1"})

	require.NoError(t, h.Handle(context.Background(), m))
	require.NoError(t, h.Handle(context.Background(), m))

	assert.Equal(t, []string{"PaymentSucceeded:pi_1"}, a.calls)
	assert.True(t, d.seen["e1"])
}

func TestPaymentEvents_DropsWhatCannotBeApplied(t *testing.T) {
	a := &applier{}
	h := &PaymentEvents{Payments: a}

	assert.NoError(t, h.Handle(context.Background(), kafkago.Message{Value: []byte("{")}))
	assert.NoError(t, h.Handle(context.Background(), message(t, "e2", orders.EventOrderCreated, orders.PaymentEventPayload{})))
	assert.Empty(t, a.calls)

	a.err = apperr.NotFound("order", "x")
	assert.NoError(t, h.Handle(context.Background(), message(t, "e3", orders.EventPaymentFailed, orders.PaymentEventPayload{IntentID: "pi_3"})))
}

func TestPaymentEvents_FailureIsRetriedNotMarked(t *testing.T) {
	a := &applier{err: errors.New("db down")}
	d := &memDedup{seen: map[string]bool{}}
	h := &PaymentEvents{Payments: a, Dedup: d}

	err := h.Handle(context.Background(), message(t, "e4", orders.EventPaymentFailed, orders.PaymentEventPayload{IntentID: "pi_4"}))
	assert.Error(t, err)
	assert.False(t, d.seen["e4"])
}

func TestPaymentEvents_DedupOutageStillApplies(t *testing.T) {
	a := &applier{}
	d := &memDedup{seen: map[string]bool{}, seenErr: errors.New("redis down")}
	h := &PaymentEvents{Payments: a, Dedup: d}

	require.NoError(t, h.Handle(context.Background(), message(t, "e5", orders.EventPaymentSucceeded, orders.PaymentEventPayload{IntentID: "pi_5"})))
	assert.Len(t, a.calls, 1)
}

func TestPaymentEvents_SkipsByHeader(t *testing.T) {
	a := &applier{}
	h := &PaymentEvents{Payments: a}
	m := message(t, "e6", orders.EventPaymentSucceeded, orders.PaymentEventPayload{IntentID: "pi_6"})
	m.Headers = []kafkago.Header{{Key: "x-event-type", Value: []byte(orders.EventOrderRefunded)}}

	require.NoError(t, h.Handle(context.Background(), m))
	assert.Empty(t, a.calls)
}
