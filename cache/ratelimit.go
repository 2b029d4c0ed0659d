package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	callerLimitPerWindow = 10
	sourceLimitPerWindow = 100
	counterWindow        = time.Minute
)

// RedisRateLimiter keeps the per-caller and per-source counters in redis so
// every service instance sees the same window. Counters are fixed windows:
// INCR creates the key, EXPIRE starts the window on first increment, and the
// key's TTL is the retry hint handed back to throttled callers.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(cache *RedisCache) *RedisRateLimiter {
	return &RedisRateLimiter{client: cache.Client()}
}

// Allow increments both windows in one round trip, then refunds the counter
// that was under quota when the other rejects, keeping the two quotas
// independent of each other.
func (rl *RedisRateLimiter) Allow(ctx context.Context, callerKey, sourceAddr string) (time.Duration, error) {
	sourceCounter := "ratelimit:source:" + sourceAddr
	callerCounter := "ratelimit:caller:" + callerKey

	pipe := rl.client.TxPipeline()
	sourceCount := pipe.Incr(ctx, sourceCounter)
	pipe.ExpireNX(ctx, sourceCounter, counterWindow)
	callerCount := pipe.Incr(ctx, callerCounter)
	pipe.ExpireNX(ctx, callerCounter, counterWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit counter update failed: %w", err)
	}

	sourceOver := sourceCount.Val() > sourceLimitPerWindow
	callerOver := callerCount.Val() > callerLimitPerWindow
	if !sourceOver && !callerOver {
		return 0, nil
	}

	if !sourceOver {
		rl.client.Decr(ctx, sourceCounter)
	}
	if !callerOver {
		rl.client.Decr(ctx, callerCounter)
	}

	exhausted := sourceCounter
	if !sourceOver {
		exhausted = callerCounter
	}
	ttl, err := rl.client.TTL(ctx, exhausted).Result()
	if err != nil || ttl <= 0 {
		ttl = counterWindow
	}
	return ttl, nil
}
