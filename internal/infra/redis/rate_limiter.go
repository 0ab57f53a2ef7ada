package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter bounds submit/poll traffic per provider across all engine
// replicas sharing one Redis.
type RateLimiter struct {
	client Client
}

func NewRateLimiter(client Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow implements a fixed-window counter: first INCR in a window sets the
// expiry, counts above the limit are rejected until the window rolls over.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

func ProviderKey(provider string) string {
	return fmt.Sprintf("rate_limit:provider:%s", provider)
}
