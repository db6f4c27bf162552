// Package cache provides pluggable storage for cached REST responses.
// Implementations back the client's response-caching stage; all of them
// must be safe for concurrent use and context-aware.
package cache

import (
	"context"
	"time"
)

// Store defines the operations the response-caching stage needs from a
// backing store.
//
// Example usage:
//
//	store := cache.NewMemoryStore(1024)
//	defer store.Close()
//
//	err = store.Set(ctx, "GET:/users/123", payload, 5*time.Minute)
//	data, err := store.Get(ctx, "GET:/users/123")
type Store interface {
	// Get retrieves a value from the store by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL.
	// If ttl is 0, the value is stored without expiration (use with caution).
	// Overwrites existing values. A negative ttl returns ErrInvalidTTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the store.
	// Returns nil if the key doesn't exist (idempotent operation).
	Delete(ctx context.Context, key string) error

	// Health checks the health of the store.
	// Should be fast (<100ms) and safe to call frequently.
	Health(ctx context.Context) error

	// Close releases the store's resources.
	// After calling Close, the store must not be used.
	Close() error
}
