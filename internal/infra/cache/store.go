package cache

import (
	"context"
	"time"
)

// Store is a TTL-keyed value store fronting repeated upstream queries.
// Get returns (nil, nil) on a miss; implementations must never let a
// backend failure surface as anything other than a miss or no-op.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
