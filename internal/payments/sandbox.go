package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
)

// Sandbox is an in-process Gateway for local runs and tests. Intents are
// created in requires_payment_method; SetStatus moves them. Webhook bodies
// are plain JSON Event values with no signature, so they are refused unless
// AcceptWebhooks is set.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]*Intent
	refunds map[string]decimal.Decimal // intent id -> refunded amount

	// Fail, when set, is returned by every call.
	Fail error
	// AcceptWebhooks allows unsigned webhook bodies.
	AcceptWebhooks bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{intents: make(map[string]*Intent), refunds: make(map[string]decimal.Decimal)}
}

func (s *Sandbox) SetStatus(intentID string, st IntentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.intents[intentID]; ok {
		in.Status = st
	}
}

func (s *Sandbox) Refunded(intentID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunds[intentID]
}

func (s *Sandbox) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	id := "pi_" + uuid.NewString()
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       IntentRequiresPaymentMethod,
		Amount:       amount,
		Currency:     currency,
		Metadata:     metadata,
	}
	s.intents[id] = in
	cp := *in
	return &cp, nil
}

func (s *Sandbox) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sandbox retrieve: %w: %v", apperr.ErrPaymentGateway, err)
	}
	in, ok := s.intents[id]
	if !ok {
		return nil, apperr.NotFound("payment intent", id)
	}
	cp := *in
	return &cp, nil
}

func (s *Sandbox) Refund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	in, ok := s.intents[intentID]
	if !ok || in.Status != IntentSucceeded {
		return "", fmt.Errorf("sandbox refund %s: %w", intentID, apperr.ErrPaymentGateway)
	}
	s.refunds[intentID] = s.refunds[intentID].Add(amount)
	return "re_" + uuid.NewString(), nil
}

func (s *Sandbox) ParseWebhook(payload []byte, _ string) (Event, error) {
	if !s.AcceptWebhooks {
		return Event{}, fmt.Errorf("sandbox gateway cannot verify webhook signatures: %w", apperr.ErrUnauthorized)
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, apperr.Invalid("webhook payload: %v", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, apperr.Invalid("webhook payload needs id and type")
	}
	return ev, nil
}
