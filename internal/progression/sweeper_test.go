package progression

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var base = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func seed(s *memstore.Store, id string, st orders.Status, age time.Duration) {
	s.SeedOrder(&orders.Order{
		ID: id, Number: "ORD-" + id, UserID: "alice", Status: st,
		Lines:     []orders.Line{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(5)}},
		History:   []orders.HistoryEntry{{Status: st, At: base.Add(-age)}},
		CreatedAt: base.Add(-age),
	})
}

func newSweeper(t *testing.T) (*Sweeper, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	s.SeedProduct(catalog.Product{ID: "p1", Name: "Pen", InventoryQuantity: 10, Price: decimal.NewFromInt(5)})
	svc := orders.NewService(s, s, s, orders.DefaultPricing(), nil, nil)
	sw := NewSweeper(svc, s, DefaultThresholds(), time.Minute, nil)
	sw.now = func() time.Time { return base }
	return sw, s
}

func status(t *testing.T, s *memstore.Store, id string) *orders.Order {
	t.Helper()
	o, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestSweep_AdvancesByAge(t *testing.T) {
	sw, s := newSweeper(t)
	seed(s, "young", orders.StatusPending, time.Minute)
	seed(s, "due", orders.StatusPending, 2*time.Minute)
	seed(s, "confirmed", orders.StatusConfirmed, 6*time.Minute)
	seed(s, "shipped-early", orders.StatusShipped, 11*time.Minute)
	seed(s, "shipped", orders.StatusShipped, 13*time.Minute)
	seed(s, "done", orders.StatusDelivered, time.Hour)

	moved, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	assert.Equal(t, orders.StatusPending, status(t, s, "young").Status)
	assert.Equal(t, orders.StatusConfirmed, status(t, s, "due").Status)
	assert.Equal(t, orders.StatusProcessing, status(t, s, "confirmed").Status)
	assert.Equal(t, orders.StatusShipped, status(t, s, "shipped-early").Status)
	assert.Equal(t, orders.StatusDelivered, status(t, s, "done").Status)

	delivered := status(t, s, "shipped")
	assert.Equal(t, orders.StatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	last := delivered.History[len(delivered.History)-1]
	assert.Equal(t, orders.StatusDelivered, last.Status)
	assert.Equal(t, note, last.Note)
}

func TestSweep_OneStepPerPass(t *testing.T) {
	sw, s := newSweeper(t)
	seed(s, "old", orders.StatusPending, time.Hour)

	for _, want := range []orders.Status{orders.StatusConfirmed, orders.StatusProcessing, orders.StatusShipped, orders.StatusDelivered} {
		_, err := sw.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, status(t, s, "old").Status)
	}
	moved, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Len(t, status(t, s, "old").History, 5)
}

func TestSweep_NeverTouchesCancelled(t *testing.T) {
	sw, s := newSweeper(t)
	seed(s, "gone", orders.StatusCancelled, time.Hour)

	moved, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Equal(t, 10, func() int {
		p, _ := s.GetProduct(context.Background(), "p1")
		return p.InventoryQuantity
	}())
}

type raced struct{}

func (raced) Advance(_ context.Context, _ string, from, to orders.Status, _ string) (*orders.Order, error) {
	return nil, apperr.Transition(string(orders.StatusCancelled), string(to))
}

func TestSweep_SkipsOrdersChangedConcurrently(t *testing.T) {
	_, s := newSweeper(t)
	seed(s, "a", orders.StatusPending, time.Hour)
	sw := NewSweeper(raced{}, s, DefaultThresholds(), time.Minute, nil)
	sw.now = func() time.Time { return base }

	moved, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestStart_StopsOnCancel(t *testing.T) {
	sw, s := newSweeper(t)
	seed(s, "due", orders.StatusPending, time.Hour)
	sw.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)
	require.Eventually(t, func() bool {
		return status(t, s, "due").Status != orders.StatusPending
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	sw.WaitClosed()
}
