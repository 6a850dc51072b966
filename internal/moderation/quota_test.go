package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/counter"
)

func TestQuotaTracker_ConsumeToLimit(t *testing.T) {
	ctx := context.Background()
	quota := setupQuota(t, 3)

	for i := int64(1); i <= 3; i++ {
		ok, err := quota.Consume(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		status, err := quota.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3-i, status.Remaining)
	}

	ok, err := quota.Consume(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "consume past the ceiling must not count")

	exhausted, err := quota.Exhausted(ctx)
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestQuotaTracker_StatusDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	quota := setupQuota(t, 5)

	_, err := quota.Consume(ctx)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		status, err := quota.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), status.Remaining)
		assert.False(t, status.Limited)

		exhausted, err := quota.Exhausted(ctx)
		require.NoError(t, err)
		assert.False(t, exhausted)
	}
}

func TestQuotaTracker_RollingWindowReset(t *testing.T) {
	ctx := context.Background()

	store := counter.NewLocalStore(counter.LocalOptions{SweepInterval: time.Hour})
	t.Cleanup(func() {
		store.Close()
	})

	quota := NewQuotaTracker(store, 2)
	quota.window = 50 * time.Millisecond

	for i := 0; i < 2; i++ {
		ok, err := quota.Consume(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}

	exhausted, err := quota.Exhausted(ctx)
	require.NoError(t, err)
	assert.True(t, exhausted)

	time.Sleep(80 * time.Millisecond)

	// The window has rolled over; the ceiling is available again
	exhausted, err = quota.Exhausted(ctx)
	require.NoError(t, err)
	assert.False(t, exhausted)

	ok, err := quota.Consume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// windowRecordingStore wraps a LocalStore and captures the window each
// read-only count is scoped to.
type windowRecordingStore struct {
	inner       *counter.LocalStore
	readWindows []time.Duration
}

func (w *windowRecordingStore) IncrementAndCheck(ctx context.Context, key string, limit int64, window time.Duration) (counter.Result, error) {
	return w.inner.IncrementAndCheck(ctx, key, limit, window)
}

func (w *windowRecordingStore) CurrentCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	w.readWindows = append(w.readWindows, window)
	return w.inner.CurrentCount(ctx, key, window)
}

func TestQuotaTracker_ReadsAreScopedToQuotaWindow(t *testing.T) {
	ctx := context.Background()

	local := counter.NewLocalStore(counter.LocalOptions{SweepInterval: time.Hour})
	t.Cleanup(func() {
		local.Close()
	})
	store := &windowRecordingStore{inner: local}

	quota := NewQuotaTracker(store, 10)

	_, err := quota.Consume(ctx)
	require.NoError(t, err)

	_, err = quota.Exhausted(ctx)
	require.NoError(t, err)
	_, err = quota.Status(ctx)
	require.NoError(t, err)

	// A backend holding stale members must only count the rolling 24h;
	// an unscoped read would pin the quota exhausted past the reset.
	require.NotEmpty(t, store.readWindows)
	for _, w := range store.readWindows {
		assert.Equal(t, 24*time.Hour, w)
	}
}

func TestQuotaTracker_StatusBeforeFirstUse(t *testing.T) {
	ctx := context.Background()
	quota := setupQuota(t, 100)

	status, err := quota.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), status.Remaining)
	assert.False(t, status.Limited)
	assert.True(t, status.ResetTime.After(time.Now()))
}
