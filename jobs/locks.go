package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"wfm-core/errs"
)

// RedisLocker takes advisory locks keyed by operation scope, e.g. an
// (employee, date range) during attendance reconstruction.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire takes the lock or fails with errs.ErrConflict. The returned
// release function is safe to defer; it only releases a lock this caller
// still owns.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	fullKey := "wfm:lock:" + key

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked by a concurrent operation", errs.ErrConflict, key)
	}

	release := func() {
		val, err := l.rdb.Get(context.Background(), fullKey).Result()
		if err == nil && val == token {
			l.rdb.Del(context.Background(), fullKey)
		}
	}
	return release, nil
}
