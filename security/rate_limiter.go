package security

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-caller and per-source quotas over a rolling minute.
const (
	CallerLimitPerMinute = 10
	SourceLimitPerMinute = 100
	LimitWindow          = time.Minute
)

// RateLimiter enforces both quotas with token buckets in process memory. It
// is only correct for a single service instance; horizontally scaled
// deployments use the redis-backed limiter instead.
type RateLimiter struct {
	callers map[string]*rate.Limiter
	sources map[string]*rate.Limiter
	mu      sync.Mutex
	cleanup *time.Timer
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*rate.Limiter),
		sources: make(map[string]*rate.Limiter),
	}
	rl.startCleanup()
	return rl
}

// Allow checks both counters. A non-zero retryAfter means the request is
// over quota and reports how long until capacity frees up. The counters are
// independent: a request rejected by one quota consumes nothing from the
// other.
func (rl *RateLimiter) Allow(ctx context.Context, callerKey, sourceAddr string) (time.Duration, error) {
	rl.mu.Lock()
	caller := rl.limiterFor(rl.callers, callerKey, CallerLimitPerMinute)
	source := rl.limiterFor(rl.sources, sourceAddr, SourceLimitPerMinute)
	rl.mu.Unlock()

	sourceRes := source.Reserve()
	if delay := sourceRes.Delay(); delay > 0 {
		sourceRes.Cancel()
		return ceilSeconds(delay), nil
	}
	callerRes := caller.Reserve()
	if delay := callerRes.Delay(); delay > 0 {
		callerRes.Cancel()
		sourceRes.Cancel()
		return ceilSeconds(delay), nil
	}
	return 0, nil
}

func (rl *RateLimiter) limiterFor(m map[string]*rate.Limiter, key string, perMinute int) *rate.Limiter {
	limiter, exists := m[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(LimitWindow/time.Duration(perMinute)), perMinute)
		m[key] = limiter
	}
	return limiter
}

func ceilSeconds(delay time.Duration) time.Duration {
	return time.Duration(math.Ceil(delay.Seconds())) * time.Second
}

func (rl *RateLimiter) startCleanup() {
	rl.cleanup = time.AfterFunc(5*time.Minute, func() {
		rl.mu.Lock()
		defer rl.mu.Unlock()

		now := time.Now()
		for key, limiter := range rl.callers {
			if limiter.TokensAt(now) >= float64(limiter.Burst()) {
				delete(rl.callers, key)
			}
		}
		for key, limiter := range rl.sources {
			if limiter.TokensAt(now) >= float64(limiter.Burst()) {
				delete(rl.sources, key)
			}
		}

		rl.startCleanup()
	})
}

func (rl *RateLimiter) Close() {
	if rl.cleanup != nil {
		rl.cleanup.Stop()
	}
}
