package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

var (
	ErrLockNotAcquired = errors.New("date lock not acquired")
)

// redisDateLocker serializes schedule commits per calendar date with one
// Redis key per date. The coordinator passes dates pre-sorted, so
// concurrent commits always acquire in the same order and cannot deadlock.
type redisDateLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDateLocker creates a schedule.DateLocker backed by Redis SET NX.
func NewRedisDateLocker(client *redis.Client, ttl time.Duration) schedule.DateLocker {
	return &redisDateLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisDateLocker) WithDateLocks(ctx context.Context, dates []schedule.Date, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	keys := make([]string, 0, len(dates))

	for _, d := range dates {
		key := fmt.Sprintf("lock:date:%s", d)
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.releaseAll(ctx, keys, token)
			return fmt.Errorf("acquire date lock %s: %w", d, err)
		}
		if !ok {
			l.releaseAll(ctx, keys, token)
			return ErrLockNotAcquired
		}
		keys = append(keys, key)
	}

	defer l.releaseAll(ctx, keys, token)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDateLocker) releaseAll(ctx context.Context, keys []string, token string) {
	for i := len(keys) - 1; i >= 0; i-- {
		// A failed release is harmless: the key expires after the TTL.
		_, _ = unlockScript.Run(ctx, l.client, []string{keys[i]}, token).Result()
	}
}
