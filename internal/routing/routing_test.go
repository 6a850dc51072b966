package routing

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/counter"
	"palisade/internal/database/boltstore"
	"palisade/internal/handlers"
	"palisade/internal/moderation"
	"palisade/internal/pipeline"
	"palisade/internal/ratelimit"
	"palisade/internal/strikes"
)

func setupRouter(t *testing.T) http.Handler {
	store := counter.NewLocalStore(counter.LocalOptions{SweepInterval: time.Hour})
	t.Cleanup(func() {
		store.Close()
	})

	limiter, err := ratelimit.NewLimiter(store)
	require.NoError(t, err)

	dispatcher, err := moderation.NewDispatcher(moderation.NewKeywordFilter(), nil, nil)
	require.NoError(t, err)

	db, err := boltstore.Open(boltstore.Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	strikeService, err := strikes.NewService(db.StrikeStore(), strikes.Options{})
	require.NoError(t, err)

	p, err := pipeline.New(limiter, dispatcher, strikeService)
	require.NoError(t, err)

	return SetupRouter(Config{
		Handlers: handlers.New(p, dispatcher, strikeService),
		Limiter:  limiter,
		Logger:   zerolog.Nop(),
	})
}

func postContent(t *testing.T, router http.Handler, actorID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/content",
		strings.NewReader(`{"content":"this is totally normal text"}`))
	req.Header.Set("X-Actor-ID", actorID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// The full preset budget must be usable through the deployed stack: the
// pipeline is the only layer charging content admission, so an actor gets
// all of createPost's slots, not half of them.
func TestRouter_ContentBudgetChargedOnce(t *testing.T) {
	router := setupRouter(t)

	limit := int(ratelimit.Presets[ratelimit.PresetCreatePost].Limit)
	for i := 1; i <= limit; i++ {
		rec := postContent(t, router, "did:plc:u1")
		require.Equal(t, http.StatusOK, rec.Code, "post %d of %d should be admitted", i, limit)
	}

	rec := postContent(t, router, "did:plc:u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRouter_HealthzBypassesRateLimiting(t *testing.T) {
	router := setupRouter(t)

	for i := 0; i < 150; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
