package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/redis"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Rule struct {
	Rate   int
	Period time.Duration
}

type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow counts a hit on key within a fixed window. Redis failures let the request
// through.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rule Rule) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, rule.Period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return true
	}

	if incr.Val() > int64(rule.Rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
