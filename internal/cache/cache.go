// Package cache is the best-effort read cache used by the cart and order
// services. Nothing may depend on a cache hit for correctness.
package cache

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	// Get decodes the cached value into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Del(context.Context, ...string) error                  { return nil }

const (
	// cart:{user_id} -> cart JSON
	keyCart = "cart:%s"
	// cart:summary:{user_id} -> summary JSON
	keyCartSummary = "cart:summary:%s"
	// order:{order_id} -> order JSON
	keyOrder = "order:%s"
	// payment:{intent_id} -> {order_id, user_id, amount}
	keyPayment = "payment:%s"
	// wishlist:{user_id}
	keyWishlist = "wishlist:%s"
)

var (
	TTLCart        = 5 * time.Minute
	TTLCartSummary = 2 * time.Minute
	TTLOrder       = 5 * time.Minute
	TTLPayment     = time.Hour
	TTLWishlist    = 5 * time.Minute
)

func CartKey(userID string) string        { return fmt.Sprintf(keyCart, userID) }
func CartSummaryKey(userID string) string { return fmt.Sprintf(keyCartSummary, userID) }
func OrderKey(orderID string) string      { return fmt.Sprintf(keyOrder, orderID) }
func PaymentKey(intentID string) string   { return fmt.Sprintf(keyPayment, intentID) }
func WishlistKey(userID string) string    { return fmt.Sprintf(keyWishlist, userID) }
