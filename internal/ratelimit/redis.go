package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// RedisLimiter counts in Redis so limits hold across service replicas.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed limiter.
func NewRedis(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the counter for (bucket, key) and compares against max.
// INCR is atomic; the expiry is attached on the first hit of the window so
// the key self-destructs when the window closes.
func (l *RedisLimiter) Allow(ctx context.Context, bucket, key string, max int, window time.Duration) (Result, error) {
	counterKey := keyPrefix + bucket + ":" + key

	cnt, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return Result{}, err
	}
	if cnt == 1 {
		// Best effort: a lost EXPIRE only widens the window for this key.
		l.client.Expire(ctx, counterKey, window)
	}

	if cnt > int64(max) {
		return Result{Allowed: false, Remaining: 0}, nil
	}
	return Result{Allowed: true, Remaining: max - int(cnt)}, nil
}
