package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cache"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
)

// Service applies cart mutations. The stock check it performs is advisory:
// two users may both pass it for the last unit. The authoritative check is
// the conditional decrement at order creation.
type Service struct {
	Store   Store
	Catalog catalog.Catalog
	Ledger  *ledger.Ledger
	Cache   cache.Cache
	Metrics *telemetry.Instruments
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewService(store Store, cat catalog.Catalog, c cache.Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:   store,
		Catalog: cat,
		Ledger:  ledger.New(cat, store),
		Cache:   c,
		Logger:  logger,
		Now:     time.Now,
	}
}

func (s *Service) load(ctx context.Context, userID string, create bool) (*Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("cart mutation requires a signed-in user: %w", apperr.ErrUnauthorized)
	}
	c, err := s.Store.GetCart(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) && create {
		return &Cart{ID: uuid.NewString(), UserID: userID, Lines: []Line{}, UpdatedAt: s.Now().UTC()}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.Recalculate()
	c.UpdatedAt = s.Now().UTC()
	if err := s.Store.SaveCart(ctx, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.invalidate(ctx, c.UserID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.Cache.Del(ctx, cache.CartKey(userID), cache.CartSummaryKey(userID)); err != nil {
		s.Logger.Warn("cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) rejected(ctx context.Context, userID, productID string, err error) error {
	if errors.Is(err, apperr.ErrInsufficientStock) {
		s.Metrics.StockRejected(ctx, "cart")
		s.Logger.Info("cart stock check rejected",
			zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
	}
	return err
}

// AddItem adds quantity units of product+variant, merging into an existing
// line. The snapshot price is refreshed to the product's current price.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, variant catalog.Variant) (*Cart, error) {
	if quantity < 1 {
		return nil, apperr.Invalid("quantity must be at least 1")
	}
	if err := variant.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	c, err := s.load(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	key := variant.Key()

	avail, err := s.Ledger.Available(ctx, productID, userID, key)
	if err != nil {
		return nil, err
	}
	if err := avail.CheckAdd(quantity); err != nil {
		return nil, s.rejected(ctx, userID, productID, err)
	}

	price := avail.Product.EffectivePrice()
	if i := c.find(productID, key); i >= 0 {
		c.Lines[i].Quantity += quantity
		c.Lines[i].Price = price
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: productID,
			Variant:   key,
			Quantity:  quantity,
			Price:     price,
			AddedAt:   s.Now().UTC(),
		})
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("cart item added",
		zap.String("user_id", userID), zap.String("product_id", productID),
		zap.String("variant", string(key)), zap.Int("quantity", quantity))
	return c, nil
}

// UpdateItemQuantity sets the line to an absolute quantity; zero removes it.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int, variant catalog.Variant) (*Cart, error) {
	if quantity < 0 {
		return nil, apperr.Invalid("quantity cannot be negative")
	}
	if err := variant.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID, variant)
	}
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	key := variant.Key()
	i := c.find(productID, key)
	if i < 0 {
		return nil, apperr.NotFound("cart item", productID)
	}

	avail, err := s.Ledger.Available(ctx, productID, userID, key)
	if err != nil {
		return nil, err
	}
	if err := avail.CheckSet(quantity); err != nil {
		return nil, s.rejected(ctx, userID, productID, err)
	}

	c.Lines[i].Quantity = quantity
	c.Lines[i].Price = avail.Product.EffectivePrice()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("cart item updated",
		zap.String("user_id", userID), zap.String("product_id", productID), zap.Int("quantity", quantity))
	return c, nil
}

// RemoveItem drops the product+variant line. Removing a line that is not
// there still succeeds.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string, variant catalog.Variant) (*Cart, error) {
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	c.remove(productID, variant.Key())
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	c.Clear()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.Logger.Info("cart cleared", zap.String("user_id", userID))
	return c, nil
}

// Get returns the user's cart, creating an empty one on first access and
// pruning lines whose product is gone or no longer active.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("cart requires a signed-in user: %w", apperr.ErrUnauthorized)
	}
	var cached Cart
	if ok, err := s.Cache.Get(ctx, cache.CartKey(userID), &cached); err == nil && ok {
		return &cached, nil
	}

	c, err := s.Store.GetCart(ctx, userID)
	dirty := false
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c = &Cart{ID: uuid.NewString(), UserID: userID, Lines: []Line{}}
		dirty = true
	case err != nil:
		return nil, err
	}

	kept := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		p, err := s.Catalog.GetProduct(ctx, l.ProductID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if err == nil && p.Active() {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(c.Lines) {
		dirty = true
	}
	c.Lines = kept
	if dirty {
		if err := s.save(ctx, c); err != nil {
			return nil, err
		}
	}
	if err := s.Cache.Set(ctx, cache.CartKey(userID), c, cache.TTLCart); err != nil {
		s.Logger.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return c, nil
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	var sum Summary
	if userID == "" {
		return Summary{TotalPrice: decimal.Zero}, nil
	}
	if ok, err := s.Cache.Get(ctx, cache.CartSummaryKey(userID), &sum); err == nil && ok {
		return sum, nil
	}
	c, err := s.load(ctx, userID, false)
	if errors.Is(err, apperr.ErrNotFound) {
		return Summary{TotalPrice: decimal.Zero}, nil
	}
	if err != nil {
		return Summary{}, err
	}
	sum = c.Summary()
	if err := s.Cache.Set(ctx, cache.CartSummaryKey(userID), sum, cache.TTLCartSummary); err != nil {
		s.Logger.Warn("cart summary cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return sum, nil
}

// Sync drops unsellable lines and clamps quantities to on-hand stock.
// It reports whether anything changed.
func (s *Service) Sync(ctx context.Context, userID string) (*Cart, bool, error) {
	c, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, false, err
	}
	changed := false
	kept := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		p, err := s.Catalog.GetProduct(ctx, l.ProductID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, false, err
		}
		if err != nil || !p.Active() {
			changed = true
			continue
		}
		if l.Quantity > p.InventoryQuantity {
			l.Quantity = p.InventoryQuantity
			changed = true
		}
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	if !changed {
		return c, false, nil
	}
	c.Lines = kept
	if err := s.save(ctx, c); err != nil {
		return nil, false, err
	}
	s.Logger.Info("cart synced with inventory", zap.String("user_id", userID), zap.Int("lines", len(kept)))
	return c, true, nil
}
