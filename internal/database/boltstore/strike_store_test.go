package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/moderation"
	"palisade/internal/strikes"
)

func setupTestStrikeStore(t *testing.T) *StrikeStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store.StrikeStore()
}

func makeStrike(id, actorID string, createdAt time.Time) strikes.Strike {
	return strikes.Strike{
		ID:            id,
		ActorID:       actorID,
		ViolationType: moderation.ViolationSpam,
		Content:       "buy now buy now",
		Reason:        "Content appears to be spam",
		CreatedAt:     createdAt,
	}
}

func TestStrikeStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStrikeStore(t)

	strike := makeStrike("s1", "did:plc:u1", time.Now())
	strike.RelatedPostID = "post-42"

	err := store.AppendStrike(ctx, strike)
	require.NoError(t, err)

	retrieved, err := store.GetStrike(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "did:plc:u1", retrieved.ActorID)
	assert.Equal(t, moderation.ViolationSpam, retrieved.ViolationType)
	assert.Equal(t, "post-42", retrieved.RelatedPostID)

	missing, err := store.GetStrike(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStrikeStore_CountSince(t *testing.T) {
	ctx := context.Background()
	store := setupTestStrikeStore(t)

	now := time.Now()
	require.NoError(t, store.AppendStrike(ctx, makeStrike("old", "did:plc:u1", now.Add(-100*24*time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s1", "did:plc:u1", now.Add(-2*time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s2", "did:plc:u1", now.Add(-time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("other", "did:plc:u2", now)))

	count, err := store.CountStrikesForActorSince(ctx, "did:plc:u1", now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the aged-out strike and the other actor's strike don't count")

	count, err = store.CountStrikesForActorSince(ctx, "did:plc:u1", now.Add(-200*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.CountStrikesForActorSince(ctx, "did:plc:unknown", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStrikeStore_ActorIDsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := setupTestStrikeStore(t)

	// One actor id being a prefix of another (colons included) must not
	// leak strikes across the index
	now := time.Now()
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s1", "did:plc", now.Add(-2*time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s2", "did:plc:abc", now.Add(-time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s3", "did:plc:abc", now)))

	count, err := store.CountStrikesForActorSince(ctx, "did:plc", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountStrikesForActorSince(ctx, "did:plc:abc", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	listed, err := store.ListStrikesForActor(ctx, "did:plc", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "s1", listed[0].ID)
}

func TestStrikeStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := setupTestStrikeStore(t)

	now := time.Now()
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s1", "did:plc:u1", now.Add(-3*time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s2", "did:plc:u1", now.Add(-2*time.Hour))))
	require.NoError(t, store.AppendStrike(ctx, makeStrike("s3", "did:plc:u1", now.Add(-time.Hour))))

	listed, err := store.ListStrikesForActor(ctx, "did:plc:u1", 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "s3", listed[0].ID)
	assert.Equal(t, "s2", listed[1].ID)

	all, err := store.ListStrikesForActor(ctx, "did:plc:u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStrikeStore_Suspensions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStrikeStore(t)

	suspension, err := store.GetSuspension(ctx, "did:plc:u1")
	require.NoError(t, err)
	assert.Nil(t, suspension, "clean actor has no suspension record")

	err = store.SetSuspension(ctx, strikes.Suspension{
		ActorID:     "did:plc:u1",
		Reason:      "Reached 3 active strikes within the lookback window",
		StrikeCount: 3,
		SuspendedAt: time.Now(),
	})
	require.NoError(t, err)

	suspension, err = store.GetSuspension(ctx, "did:plc:u1")
	require.NoError(t, err)
	require.NotNil(t, suspension)
	assert.Equal(t, 3, suspension.StrikeCount)
	assert.Contains(t, suspension.Reason, "3 active strikes")
}
