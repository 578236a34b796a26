package shared

import (
	"context"
	"time"
)

// LockGuard is a best-effort single-writer guard keyed by an arbitrary
// string. It sits in front of the authoritative unique constraint so that
// concurrent lock attempts for the same period fail fast.
type LockGuard interface {
	// Acquire returns true if the key was newly claimed, false if another
	// writer already holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim previously obtained with Acquire.
	Release(ctx context.Context, key string) error

	Close() error
}
