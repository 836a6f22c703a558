// Package store provides storage backends for fixed-window rate limiting.
package store

import (
	"context"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// Count is the number of admitted requests in the current window,
	// including this one when Allowed is true.
	Count int64

	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// Store defines the interface for rate limit storage backends.
// Implementations must be safe for concurrent use and must perform the
// check-then-increment of Admit atomically per key.
type Store interface {
	// Admit starts a new window with count 1 when the key has no active
	// window, rejects without counting when the window already holds limit
	// requests, and otherwise increments the count.
	Admit(ctx context.Context, key string, limit int64, window time.Duration) (Decision, error)

	// Get retrieves the current count for the given key.
	// Returns 0 if the key doesn't exist or its window has expired.
	Get(ctx context.Context, key string) (int64, error)

	// Reset removes the counter for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
