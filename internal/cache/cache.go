package cache

import (
	"context"
	"time"
)

// Cache is the key-value capability the sheet gateway memoizes reads through.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
