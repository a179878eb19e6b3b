// Package cache abstracts the shared key-value store used both as a
// read-through cache and as the substrate for distributed rate-limit
// counters. All operations must be safe under concurrent access from many
// service instances; consistency leans on narrow atomic primitives
// (increment, delete) rather than any distributed locking.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Store is the narrow contract services hold on the shared store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern bulk-deletes every key matching a glob pattern
	// (e.g. "posts:*"). Used for broad list-cache invalidation, where
	// page boundaries shift unpredictably on any mutation.
	DeleteByPattern(ctx context.Context, pattern string) error

	// IncrWithTTL atomically increments key and returns the new value.
	// The TTL is armed only when the key is created, so a fixed window
	// expires relative to its first hit.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
