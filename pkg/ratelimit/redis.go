package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across every instance pointing at the same Redis
type RedisLimiter struct {
	redis *redis.Client
}

// NewRedisLimiter creates a new Redis backed limiter
func NewRedisLimiter(redisClient *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		redis: redisClient,
	}
}

// Consume opens the window with SET NX EX and counts with INCR inside one
// MULTI, so the window TTL is set exactly once and the count is atomic.
func (l *RedisLimiter) Consume(ctx context.Context, key string, policy Policy) (bool, error) {
	if policy.Points <= 0 || policy.Window <= 0 {
		return true, nil
	}

	k := counterKey(policy.Name, key)

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, policy.Window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to consume rate limit %s: %w", policy.Name, err)
	}

	return incr.Val() <= int64(policy.Points), nil
}
