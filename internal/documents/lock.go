package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes ingestion runs of the same document.
type Locker interface {
	// Obtain returns ErrLocked if key is already held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker implements Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return lock, nil
}

// NopLocker always succeeds. Used when Redis is not configured.
type NopLocker struct{}

func (NopLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return nopLock{}, nil
}

type nopLock struct{}

func (nopLock) Release(context.Context) error { return nil }

func lockKey(documentID string) string {
	return "ingest:" + documentID
}
