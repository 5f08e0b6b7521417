// Package worker holds the Kafka handlers run by cmd/worker.
package worker

import (
	"context"
	"encoding/json"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Deduper is satisfied by redisx.Dedup.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type PaymentApplier interface {
	HandleEvent(ctx context.Context, p orders.PaymentEventPayload, eventType string) error
}

// PaymentEvents applies gateway events from payment.events. Each event id is
// applied at most once per dedup window.
type PaymentEvents struct {
	Payments PaymentApplier
	Dedup    Deduper
	Logger   *zap.Logger
}

func (h *PaymentEvents) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Handle is a kafka.Handler.
func (h *PaymentEvents) Handle(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m.Headers, "x-event-type"); t != "" && !paymentEvent(t) {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// Redelivery cannot fix a malformed message.
		h.log().Error("drop malformed payment event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if !paymentEvent(env.EventType) {
		return nil
	}

	if h.Dedup != nil {
		seen, err := h.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			h.log().Warn("dedup lookup failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
		if seen {
			h.log().Debug("duplicate payment event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.PaymentEventPayload](env.Payload)
	if err != nil {
		h.log().Error("drop payment event", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if err := h.Payments.HandleEvent(ctx, p, env.EventType); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.log().Warn("payment event for unknown order", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		return err
	}

	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, env.EventID); err != nil {
			h.log().Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}

func paymentEvent(t string) bool {
	return t == orders.EventPaymentSucceeded || t == orders.EventPaymentFailed
}
