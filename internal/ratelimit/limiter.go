// Package ratelimit throttles query submissions per user.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidDriver is returned by NewLimiter for an unknown driver name.
	ErrInvalidDriver = errors.New("ratelimit: invalid driver")

	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("ratelimit: invalid configuration")
)

// Decision is the outcome of one rate limit check, with the header values
// the transport reports back to the caller.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a user may submit another query right now.
type Limiter interface {
	// Allow consumes one slot for userID if available.
	Allow(ctx context.Context, userID string) (Decision, error)

	// Close releases any resources held by the limiter.
	Close() error
}
