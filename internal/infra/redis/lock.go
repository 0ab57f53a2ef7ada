package redis

import (
	"context"
	"fmt"
	"time"

	"transcript-compare/internal/domain"

	"github.com/google/uuid"
)

// Locker serializes terminal writes to one job record across engine replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client Client
}

func NewLocker(client Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", domain.ErrAlreadyExists
}

const luaUnlock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.client.Eval(ctx, luaUnlock, []string{key}, token)
}

func JobLockKey(jobID string) string {
	return fmt.Sprintf("lock:job:%s", jobID)
}
