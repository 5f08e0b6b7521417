package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consumer.
type Dedup struct {
	rdb      redis.Cmdable
	consumer string
}

func NewDedup(rdb redis.Cmdable, consumer string) *Dedup {
	return &Dedup{rdb: rdb, consumer: consumer}
}

// Seen reports whether eventID was already marked.
func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.rdb, DedupKey(d.consumer, eventID))
}

// Mark records eventID as processed. Call it only after the handler succeeded
// so a failed attempt is retried on redelivery.
func (d *Dedup) Mark(ctx context.Context, eventID string) error {
	return d.rdb.Set(ctx, DedupKey(d.consumer, eventID), "1", TTLDedup).Err()
}
