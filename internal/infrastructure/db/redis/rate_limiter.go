package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every API instance.
// Key format: counting:ratelimit:<scope>:<subject>:<window_start_unix>
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per subject within each window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one hit and reports whether it is within the limit. When
// denied, retryAfter is the time left in the current window.
func (l *RateLimiter) Allow(ctx context.Context, scope, subject string) (allowed bool, retryAfter time.Duration, err error) {
	if l.limit <= 0 {
		return true, 0, nil
	}

	now := l.now()
	start := now.Truncate(l.window)
	k := key("ratelimit", scope, subject, strconv.FormatInt(start.Unix(), 10))

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}

	if incr.Val() > int64(l.limit) {
		return false, start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}
