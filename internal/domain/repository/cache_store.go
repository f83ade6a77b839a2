package repository

import (
	"context"
	"time"
)

// CacheStore is the persistent expiring key-value store backing the
// cache layer. The cache layer owns every entry; no other component
// writes to the store directly. Implementations must tolerate concurrent
// access without corrupting entries.
type CacheStore interface {
	// Get returns the raw value for a key, or found=false when the key is
	// absent or expired. Expired entries are evicted lazily on read.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set writes a value with its TTL, replacing any existing entry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// Sweep removes all expired entries and returns the count removed
	Sweep(ctx context.Context) (int, error)
}
