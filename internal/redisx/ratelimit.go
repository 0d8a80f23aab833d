package redisx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window counter kept in a sorted set per key.
type RateLimiter struct {
	client redis.UniversalClient
	limit  int
	per    time.Duration
	now    func() time.Time
}

func NewRateLimiter(c redis.UniversalClient, limit int, per time.Duration) *RateLimiter {
	return &RateLimiter{client: c, limit: limit, per: per, now: time.Now}
}

func (r *RateLimiter) Limit() int             { return r.limit }
func (r *RateLimiter) Window() time.Duration { return r.per }

// Allow records one hit for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	key = "ratelimit:" + key

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now-r.per.Nanoseconds(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: strconv.FormatInt(now, 10) + "-" + uuid.NewString()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.per)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return card.Val() <= int64(r.limit), nil
}
