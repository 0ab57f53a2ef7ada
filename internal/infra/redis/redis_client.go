package redis

import (
	"context"
	"time"

	"transcript-compare/internal/config"

	"github.com/go-redis/redis/v8"
)

// Client is the narrow surface the rate limiter and locker need; tests swap
// in an in-memory fake.
type Client interface {
	Ping(ctx context.Context) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) error
	Close() error
}

var _ Client = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *redClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *redClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, ttl).Result()
}

func (c *redClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) error {
	_, err := c.cli.Eval(ctx, script, keys, args...).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (c *redClient) Close() error { return c.cli.Close() }
