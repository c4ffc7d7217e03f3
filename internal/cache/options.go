package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a cache store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for cache stores.
type storeConfig struct {
	ttl           time.Duration
	redisClient   *redis.Client
	sweepInterval time.Duration
}

// WithTTL sets how long entries stay fresh. Defaults to five minutes.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithSweepInterval sets how often the memory store evicts expired entries.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.sweepInterval = interval
	}
}
