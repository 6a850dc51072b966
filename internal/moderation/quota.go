package moderation

import (
	"context"
	"sync"
	"time"

	"palisade/internal/counter"
	"palisade/internal/metrics"
)

// quotaKey is the counter store key holding classifier usage.
const quotaKey = "moderation:classifier:quota"

// QuotaTracker enforces a rolling daily ceiling on classifier calls.
// The window opens on the first consume after a reset and closes 24 hours
// later; usage lives in the counter store so multiple instances share one
// ceiling when backed by Redis.
type QuotaTracker struct {
	store  counter.Store
	limit  int64
	window time.Duration

	mu          sync.Mutex
	windowStart time.Time
	now         func() time.Time
}

// NewQuotaTracker creates a tracker with the given daily ceiling.
func NewQuotaTracker(store counter.Store, dailyLimit int64) *QuotaTracker {
	return &QuotaTracker{
		store:  store,
		limit:  dailyLimit,
		window: 24 * time.Hour,
		now:    time.Now,
	}
}

// Exhausted reports whether the quota has been fully consumed, without
// mutating any state.
func (q *QuotaTracker) Exhausted(ctx context.Context) (bool, error) {
	used, err := q.store.CurrentCount(ctx, quotaKey, q.window)
	if err != nil {
		return false, err
	}
	return used >= q.limit, nil
}

// Consume records one successful classifier call. It returns false when the
// ceiling was already reached, in which case nothing was counted. Callers
// must invoke this exactly once per successful classification, never on
// errors or malformed responses.
func (q *QuotaTracker) Consume(ctx context.Context) (bool, error) {
	res, err := q.store.IncrementAndCheck(ctx, quotaKey, q.limit, q.window)
	if err != nil {
		return false, err
	}

	if res.Allowed {
		q.mu.Lock()
		if q.windowStart.IsZero() || !q.now().Before(q.windowStart.Add(q.window)) {
			q.windowStart = q.now()
		}
		q.mu.Unlock()
		metrics.ClassifierQuotaRemaining.Set(float64(res.Remaining))
	}

	return res.Allowed, nil
}

// Status returns a read-only snapshot of the quota. It never mutates the
// tracked state.
func (q *QuotaTracker) Status(ctx context.Context) (QuotaStatus, error) {
	used, err := q.store.CurrentCount(ctx, quotaKey, q.window)
	if err != nil {
		return QuotaStatus{}, err
	}

	remaining := q.limit - used
	if remaining < 0 {
		remaining = 0
	}

	q.mu.Lock()
	start := q.windowStart
	q.mu.Unlock()

	resetTime := q.now().Add(q.window)
	if !start.IsZero() && q.now().Before(start.Add(q.window)) {
		resetTime = start.Add(q.window)
	}

	return QuotaStatus{
		Remaining: remaining,
		ResetTime: resetTime,
		Limited:   remaining == 0,
	}, nil
}
