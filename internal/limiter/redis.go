// Package limiter counts attempts per key in fixed windows.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errRedisUnavailable = errors.New("limiter redis unavailable")

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	// Connection pool and timeouts
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisLimiter is a fixed-window counter shared by every server instance.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit attempts per key every window.
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, limit: limit, window: window}
}

// Allow records an attempt for key and reports whether it is within the limit.
// When denied, retryAfter is the time left in the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", errRedisUnavailable, err)
		}
	}

	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if ttl < 0 {
		// Key lost its expiry; restore it so the key cannot stick forever.
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", errRedisUnavailable, err)
		}
		ttl = l.window
	}
	return false, ttl, nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.prefix+key).Err()
}
