// Package counter provides a windowed counter store shared by the rate
// limiter and the moderation quota tracker. Two implementations exist: a
// process-local store for single-instance deployments and tests, and a
// Redis-backed store that gives a true sliding window across instances.
package counter

import (
	"context"
	"time"
)

// Result is the outcome of a single increment-and-check operation.
type Result struct {
	// Allowed is true if the increment fit within the limit.
	Allowed bool

	// Remaining is the number of increments left in the current window.
	Remaining int64

	// ResetAt is when the current window frees up capacity again.
	ResetAt time.Time
}

// Store counts events per key over a time window.
// Implementations must be safe for concurrent use.
type Store interface {
	// IncrementAndCheck records one event for key and reports whether the
	// count stayed within limit. The count for a key never exceeds limit:
	// a rejected call does not consume capacity.
	IncrementAndCheck(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)

	// CurrentCount returns the number of events recorded for key within
	// the trailing window, without mutating any state.
	CurrentCount(ctx context.Context, key string, window time.Duration) (int64, error)
}
