package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes allocations across hosts sharing one Redis.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// RedisLockerConfig configures NewRedisLocker. Zero values select the
// defaults: 30s lock TTL, 5s wait.
type RedisLockerConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

func NewRedisLocker(rdb redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    cfg.TTL,
		wait:   cfg.Wait,
	}
}

func redisKey(key string) string {
	return "lock:numbering:" + lockName(key)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(waitCtx, redisKey(key), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, redisKey(key))
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock: %w", err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("release redis lock: %w", err)
		}
		return nil
	}, nil
}
