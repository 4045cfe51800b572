// Package store provides the content-addressed key-value caches used by
// venue discovery. Entries are idempotent facts (the same key always maps
// to the same value), so backends only need atomic get/set semantics.
package store

import (
	"context"
	"time"
)

// Store is a narrow repository abstraction over a key-value cache.
// A zero TTL means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
