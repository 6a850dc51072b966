// Package ratelimit provides windowed request admission control keyed by an
// arbitrary identifier (actor id, client IP, route). All presets share one
// code path; only the numbers differ.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"palisade/internal/counter"
	"palisade/internal/metrics"
)

// Config is a single (limit, window) pair applied to a key.
type Config struct {
	// Limit is the maximum number of requests admitted per window.
	Limit int64

	// Window is the interval over which requests are counted.
	Window time.Duration
}

// Result reports the outcome of an admission check. Remaining and Reset are
// exposed to callers so they can be surfaced as rate limit headers.
type Result struct {
	Success   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter performs admission checks against a counter store.
type Limiter struct {
	store counter.Store
}

// NewLimiter creates a Limiter backed by the given store.
func NewLimiter(store counter.Store) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	return &Limiter{store: store}, nil
}

// Check admits the request iff fewer than cfg.Limit requests have been
// counted for identifier within the current window.
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) (Result, error) {
	key := buildKey(identifier)

	res, err := l.store.IncrementAndCheck(ctx, key, cfg.Limit, cfg.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check for %q: %w", identifier, err)
	}

	return Result{
		Success:   res.Allowed,
		Limit:     cfg.Limit,
		Remaining: res.Remaining,
		Reset:     res.ResetAt,
	}, nil
}

// CheckPreset runs Check with a named preset and records metrics.
// Unknown preset names fall back to the standard API preset.
func (l *Limiter) CheckPreset(ctx context.Context, identifier, preset string) (Result, error) {
	cfg, ok := Presets[preset]
	if !ok {
		cfg = Presets[PresetAPI]
		preset = PresetAPI
	}

	res, err := l.Check(ctx, preset+":"+identifier, cfg)
	if err != nil {
		return Result{}, err
	}

	outcome := "allowed"
	if !res.Success {
		outcome = "rejected"
	}
	metrics.RateLimitChecksTotal.WithLabelValues(preset, outcome).Inc()

	return res, nil
}

func buildKey(identifier string) string {
	return "ratelimit:" + strings.ToLower(strings.TrimSpace(identifier))
}
