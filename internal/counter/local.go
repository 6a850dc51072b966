package counter

import (
	"context"
	"sync"
	"time"
)

// LocalStore is an in-process Store backed by a synchronized map.
// Expired entries are treated as fresh on next access and swept
// periodically so idle keys don't accumulate forever.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry

	sweepInterval time.Duration
	now           func() time.Time
	stop          chan struct{}
	stopOnce      sync.Once
}

type localEntry struct {
	count   int64
	resetAt time.Time
}

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// SweepInterval is how often expired entries are removed.
	// If zero, a default of 1 minute is used.
	SweepInterval time.Duration
}

// NewLocalStore creates a LocalStore and starts its sweep goroutine.
// Call Close to stop the sweeper.
func NewLocalStore(opts LocalOptions) *LocalStore {
	if opts.SweepInterval == 0 {
		opts.SweepInterval = time.Minute
	}

	s := &LocalStore{
		entries:       make(map[string]*localEntry),
		sweepInterval: opts.SweepInterval,
		now:           time.Now,
		stop:          make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// IncrementAndCheck implements Store.
func (s *LocalStore) IncrementAndCheck(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		// First request for this key, or the previous window has elapsed.
		entry = &localEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}

	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}, nil
	}

	entry.count++

	return Result{
		Allowed:   true,
		Remaining: limit - entry.count,
		ResetAt:   entry.resetAt,
	}, nil
}

// CurrentCount implements Store. The entry tracks its own window boundary,
// so the window parameter only matters for the Redis implementation.
func (s *LocalStore) CurrentCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.resetAt) {
		return 0, nil
	}
	return entry.count, nil
}

// Close stops the sweep goroutine.
func (s *LocalStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

func (s *LocalStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *LocalStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if !now.Before(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}
