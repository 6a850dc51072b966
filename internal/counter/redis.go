package counter

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"palisade/internal/metrics"
)

// RedisStore is a Store backed by a Redis sorted set per key. Each event is
// a member scored with its timestamp, so admission evaluates a true sliding
// window. If Redis is unreachable, calls transparently fall back to an
// embedded LocalStore for that invocation; global accuracy degrades but the
// pipeline stays available.
type RedisStore struct {
	client   *redis.Client
	fallback *LocalStore

	// degraded flips to true on the first failure of a burst so we log
	// once per incident instead of once per request.
	degraded atomic.Bool
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:   client,
		fallback: NewLocalStore(LocalOptions{}),
	}, nil
}

// newRedisStoreWithClient is used by tests to inject an unreachable client.
func newRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:   client,
		fallback: NewLocalStore(LocalOptions{}),
	}
}

// IncrementAndCheck implements Store with an insert-then-verify pipeline:
// prune expired members, insert this event, count, refresh the key TTL.
// If the count exceeds the limit the just-inserted member is removed, so
// two concurrent calls competing for the last slot can never both win.
func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	now := time.Now()
	member := uuid.NewString()
	cutoff := now.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.noteFailure(err)
		return s.fallback.IncrementAndCheck(ctx, key, limit, window)
	}
	s.noteRecovery()

	count := card.Val()
	resetAt := now.Add(window)
	if members := oldest.Val(); len(members) > 0 {
		resetAt = time.Unix(0, int64(members[0].Score)).Add(window)
	}

	if count > limit {
		// Over the limit: give the slot back. A failure here only means
		// the stale member ages out of the window on its own.
		if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("counter: failed to remove rejected member")
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

// CurrentCount implements Store. It counts members scored inside the
// trailing window without pruning or inserting anything; stale members
// outside the window stay in the set until the next check prunes them, so
// they must not be counted here.
func (s *RedisStore) CurrentCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window).UnixNano()

	count, err := s.client.ZCount(ctx, key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		s.noteFailure(err)
		return s.fallback.CurrentCount(ctx, key, window)
	}
	s.noteRecovery()
	return count, nil
}

// Client exposes the underlying connection so other subsystems sharing the
// Redis can reuse it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close releases the Redis connection and the fallback sweeper.
func (s *RedisStore) Close() error {
	s.fallback.Close()
	return s.client.Close()
}

func (s *RedisStore) noteFailure(err error) {
	metrics.CounterStoreFallbacksTotal.Inc()
	if s.degraded.CompareAndSwap(false, true) {
		log.Error().Err(err).Msg("counter: redis unreachable, falling back to local store")
	}
}

func (s *RedisStore) noteRecovery() {
	if s.degraded.CompareAndSwap(true, false) {
		log.Info().Msg("counter: redis connection recovered")
	}
}
