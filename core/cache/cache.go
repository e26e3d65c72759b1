package cache

import (
	"context"
	"time"
)

// Cache stores values by key with a time to live.
// A missing or expired key is reported by ok == false, not by an error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
