package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cache"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type Item struct {
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// Wishlist does not reserve stock.
type Wishlist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Wishlist) Has(productID string) bool {
	for _, it := range w.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

func (w *Wishlist) remove(productID string) bool {
	for i, it := range w.Items {
		if it.ProductID == productID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (w *Wishlist) Clone() *Wishlist {
	cp := *w
	cp.Items = append([]Item(nil), w.Items...)
	return &cp
}

// Store returns apperr.ErrNotFound from GetWishlist when the user has none.
type Store interface {
	GetWishlist(ctx context.Context, userID string) (*Wishlist, error)
	SaveWishlist(ctx context.Context, w *Wishlist) error
}

type Service struct {
	Store   Store
	Catalog catalog.Catalog
	Carts   *cart.Service
	Cache   cache.Cache
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewService(store Store, cat catalog.Catalog, carts *cart.Service, c cache.Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Catalog: cat, Carts: carts, Cache: c, Logger: logger, Now: time.Now}
}

func (s *Service) load(ctx context.Context, userID string) (*Wishlist, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	w, err := s.Store.GetWishlist(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &Wishlist{ID: uuid.NewString(), UserID: userID, Items: []Item{}}, nil
	}
	return w, err
}

func (s *Service) save(ctx context.Context, w *Wishlist) error {
	w.UpdatedAt = s.Now().UTC()
	if err := s.Store.SaveWishlist(ctx, w); err != nil {
		return err
	}
	if err := s.Cache.Del(ctx, cache.WishlistKey(w.UserID)); err != nil {
		s.Logger.Warn("wishlist cache invalidation failed", zap.String("user_id", w.UserID), zap.Error(err))
	}
	return nil
}

// List returns the wishlist with inactive or deleted products pruned.
func (s *Service) List(ctx context.Context, userID string) (*Wishlist, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	var cached Wishlist
	if ok, err := s.Cache.Get(ctx, cache.WishlistKey(userID), &cached); err == nil && ok {
		return &cached, nil
	}
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := make([]Item, 0, len(w.Items))
	for _, it := range w.Items {
		p, err := s.Catalog.GetProduct(ctx, it.ProductID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if err == nil && p.Active() {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(w.Items) {
		w.Items = kept
		if err := s.save(ctx, w); err != nil {
			return nil, err
		}
	}
	if err := s.Cache.Set(ctx, cache.WishlistKey(userID), w, cache.TTLWishlist); err != nil {
		s.Logger.Warn("wishlist cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return w, nil
}

func (s *Service) Add(ctx context.Context, userID, productID string) (*Wishlist, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, apperr.Unavailable(p.Name)
	}
	if w.Has(productID) {
		return w, nil
	}
	w.Items = append(w.Items, Item{ProductID: productID, AddedAt: s.Now().UTC()})
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (*Wishlist, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.remove(productID) {
		return nil, apperr.NotFound("wishlist item", productID)
	}
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Clear(ctx context.Context, userID string) (*Wishlist, error) {
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	w.Items = []Item{}
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// MoveToCart adds the product to the cart through the normal stock check
// and only then drops it from the wishlist. A rejected add leaves both as
// they were.
func (s *Service) MoveToCart(ctx context.Context, userID, productID string, quantity int, variant catalog.Variant) (*cart.Cart, *Wishlist, error) {
	if quantity == 0 {
		quantity = 1
	}
	w, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !w.Has(productID) {
		return nil, nil, apperr.NotFound("wishlist item", productID)
	}
	c, err := s.Carts.AddItem(ctx, userID, productID, quantity, variant)
	if err != nil {
		return nil, nil, err
	}
	w.remove(productID)
	if err := s.save(ctx, w); err != nil {
		return nil, nil, err
	}
	s.Logger.Info("wishlist item moved to cart",
		zap.String("user_id", userID), zap.String("product_id", productID), zap.Int("quantity", quantity))
	return c, w, nil
}
