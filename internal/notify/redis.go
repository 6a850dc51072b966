package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces notification channels in the shared Redis.
const channelPrefix = "palisade:notify:"

// RedisNotifier publishes notifications to a per-actor Redis channel. The
// platform's notification consumers subscribe on the other end; delivery
// beyond the publish is their problem.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier on an existing Redis connection.
func NewRedisNotifier(client *redis.Client) (*RedisNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisNotifier{client: client}, nil
}

// Notify implements Notifier.
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := r.client.Publish(ctx, channelPrefix+n.ActorID, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Channel returns the Redis channel name for an actor, for consumers that
// want to subscribe.
func Channel(actorID string) string {
	return channelPrefix + actorID
}
