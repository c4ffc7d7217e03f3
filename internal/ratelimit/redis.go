package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "finsight:rl:"

// redisLimiter is a fixed one-minute window shared across instances. Each
// window is one counter key that expires with the window.
type redisLimiter struct {
	client    *redis.Client
	perMinute int
}

func (l *redisLimiter) windowKey(userID string, now time.Time) string {
	return fmt.Sprintf("%s%s:%d", redisKeyPrefix, userID, now.Unix()/60)
}

// Allow implements Limiter.
func (l *redisLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	now := time.Now()
	key := l.windowKey(userID, now)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		// First hit in this window; expire the counter with the window.
		if err := l.client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return Decision{}, err
		}
	}

	if count > int64(l.perMinute) {
		windowEnd := time.Unix((now.Unix()/60+1)*60, 0)
		return Decision{
			Allowed:    false,
			Limit:      l.perMinute,
			Remaining:  0,
			RetryAfter: windowEnd.Sub(now),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     l.perMinute,
		Remaining: l.perMinute - int(count),
	}, nil
}

// Close implements Limiter.
func (l *redisLimiter) Close() error {
	return l.client.Close()
}
