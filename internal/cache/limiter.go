package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts login attempts per key in a fixed window.
type LoginLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewLoginLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *LoginLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		client: client,
		prefix: keyPrefix + "login:",
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one attempt for key and reports whether it is within the
// limit. When it is not, the returned duration is the time until the
// window resets. A non-positive limit disables limiting.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	redisKey := l.prefix + strings.ToLower(strings.TrimSpace(key))

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

// Reset clears the attempts recorded for key.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+strings.ToLower(strings.TrimSpace(key))).Err()
}
