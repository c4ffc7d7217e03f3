// Package cache stores finished query responses keyed by a fingerprint of the
// user, the normalized query text, and the request filters. Two drivers are
// available, an in-process map and Redis.
package cache

import (
	"context"
	"errors"

	"github.com/finsight/orchestrator/internal/domain"
)

var (
	// ErrInvalidDriver is returned by NewStore for an unknown driver name.
	ErrInvalidDriver = errors.New("cache: invalid driver")

	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("cache: invalid configuration")
)

// Store defines the interface for response cache operations.
type Store interface {
	// Lookup retrieves a cached response by key.
	// Returns nil if there is no fresh entry (not an error).
	Lookup(ctx context.Context, key string) (*domain.QueryResponse, error)

	// Put stores a response under key on behalf of userID, replacing any
	// existing entry. The entry expires after the store's configured TTL.
	Put(ctx context.Context, key, userID string, resp *domain.QueryResponse) error

	// Invalidate removes a single entry. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error

	// InvalidateUser removes every entry stored for userID.
	InvalidateUser(ctx context.Context, userID string) error

	// Close closes the store and releases any resources.
	Close() error
}
