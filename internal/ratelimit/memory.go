package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// memoryLimiter keeps one token bucket per user. The bucket refills at the
// configured per-minute rate and allows a full minute's budget as burst.
type memoryLimiter struct {
	mu        sync.Mutex
	users     map[string]*rate.Limiter
	perMinute int
}

func newMemoryLimiter(perMinute int) *memoryLimiter {
	return &memoryLimiter{
		users:     make(map[string]*rate.Limiter),
		perMinute: perMinute,
	}
}

func (l *memoryLimiter) limiterFor(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, exists := l.users[userID]
	if !exists {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
		l.users[userID] = lim
	}
	return lim
}

// Allow implements Limiter.
func (l *memoryLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	lim := l.limiterFor(userID)

	res := lim.Reserve()
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return Decision{
			Allowed:    false,
			Limit:      l.perMinute,
			Remaining:  0,
			RetryAfter: delay,
		}, nil
	}

	remaining := int(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     l.perMinute,
		Remaining: remaining,
	}, nil
}

// Close implements Limiter.
func (l *memoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = nil
	return nil
}
