// Package progression advances in-flight orders on a timer, based on how
// long ago each order was created. It goes through orders.Service.Advance,
// so every step is checked against the transition table and recorded in
// the order history like any other change.
package progression

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const note = "Automatic status progression"

// Rule promotes From to To once the order is at least After old.
type Rule struct {
	From  orders.Status
	To    orders.Status
	After time.Duration
}

type Thresholds struct {
	Confirm time.Duration
	Process time.Duration
	Ship    time.Duration
	Deliver time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{Confirm: 2 * time.Minute, Process: 5 * time.Minute, Ship: 8 * time.Minute, Deliver: 12 * time.Minute}
}

func (t Thresholds) Rules() []Rule {
	return []Rule{
		{From: orders.StatusPending, To: orders.StatusConfirmed, After: t.Confirm},
		{From: orders.StatusConfirmed, To: orders.StatusProcessing, After: t.Process},
		{From: orders.StatusProcessing, To: orders.StatusShipped, After: t.Ship},
		{From: orders.StatusShipped, To: orders.StatusDelivered, After: t.Deliver},
	}
}

type Advancer interface {
	Advance(ctx context.Context, id string, from, to orders.Status, note string) (*orders.Order, error)
}

type Lister interface {
	ListByStatus(ctx context.Context, statuses []orders.Status) ([]orders.Order, error)
}

type Sweeper struct {
	orders   Advancer
	list     Lister
	rules    map[orders.Status]Rule
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
	closeCh  chan struct{}
}

func NewSweeper(adv Advancer, list Lister, t Thresholds, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	rules := make(map[orders.Status]Rule)
	for _, r := range t.Rules() {
		rules[r.From] = r
	}
	return &Sweeper{
		orders:   adv,
		list:     list,
		rules:    rules,
		interval: interval,
		log:      log,
		now:      time.Now,
		closeCh:  make(chan struct{}),
	}
}

// Sweep moves each eligible order at most one step and returns how many
// moved. An order that changed concurrently is skipped, not an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	list, err := s.list.ListByStatus(ctx, orders.InFlight)
	if err != nil {
		return 0, err
	}
	now := s.now()
	moved := 0
	for _, o := range list {
		r, ok := s.rules[o.Status]
		if !ok || now.Sub(o.CreatedAt) < r.After {
			continue
		}
		_, err := s.orders.Advance(ctx, o.ID, r.From, r.To, note)
		switch {
		case err == nil:
			moved++
			s.log.Info("order advanced",
				zap.String("order_id", o.ID), zap.String("from", string(r.From)), zap.String("to", string(r.To)),
				zap.Duration("age", now.Sub(o.CreatedAt)))
		case errors.Is(err, apperr.ErrInvalidStateTransition), errors.Is(err, apperr.ErrNotFound):
			s.log.Debug("order moved before sweep", zap.String("order_id", o.ID), zap.Error(err))
		default:
			s.log.Error("advance order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return moved, nil
}

// Start runs Sweep every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.closeCh)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		s.log.Info("status progression started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				s.log.Info("status progression stopped")
				return
			case <-t.C:
				if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
					s.log.Error("status progression sweep", zap.Error(err))
				}
			}
		}
	}()
}

// WaitClosed blocks until the loop started by Start has returned.
func (s *Sweeper) WaitClosed() { <-s.closeCh }
