package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PresencePrefix is the key prefix for per-user connection counters
	PresencePrefix = "presence:user:"

	// PresenceTTL bounds how long a counter outlives a process that died
	// without decrementing it. Live connections refresh it on every pong.
	PresenceTTL = 2 * time.Minute
)

// PresenceCache counts open realtime connections per user across processes.
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client, ttl: PresenceTTL}
}

func presenceKey(userID int64) string {
	return PresencePrefix + strconv.FormatInt(userID, 10)
}

// Connect increments the user's counter and refreshes its TTL.
// Uses pipeline: INCR + EXPIRE
func (c *PresenceCache) Connect(ctx context.Context, userID int64) error {
	key := presenceKey(userID)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence connect: %w", err)
	}
	return nil
}

// Disconnect decrements the counter and deletes it when it reaches zero.
func (c *PresenceCache) Disconnect(ctx context.Context, userID int64) error {
	key := presenceKey(userID)
	n, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("presence disconnect: %w", err)
	}
	if n <= 0 {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("presence clear: %w", err)
		}
	}
	return nil
}

// Refresh extends the TTL of a connected user's counter.
func (c *PresenceCache) Refresh(ctx context.Context, userID int64) error {
	if err := c.client.Expire(ctx, presenceKey(userID), c.ttl).Err(); err != nil {
		return fmt.Errorf("presence refresh: %w", err)
	}
	return nil
}

// IsOnline reports whether the user has a connection on any process.
func (c *PresenceCache) IsOnline(ctx context.Context, userID int64) (bool, error) {
	n, err := c.client.Get(ctx, presenceKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence get: %w", err)
	}
	return n > 0, nil
}
