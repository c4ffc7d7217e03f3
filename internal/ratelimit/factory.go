package ratelimit

import (
	"github.com/redis/go-redis/v9"
)

// DriverType represents the type of rate limiter.
type DriverType string

const (
	DriverMemory DriverType = "memory"
	DriverRedis  DriverType = "redis"
)

const defaultPerMinute = 60

// LimiterOption is a functional option for configuring a limiter.
type LimiterOption func(*limiterConfig)

type limiterConfig struct {
	perMinute   int
	redisClient *redis.Client
}

// WithPerMinute sets the per-user request budget per minute.
func WithPerMinute(n int) LimiterOption {
	return func(c *limiterConfig) {
		c.perMinute = n
	}
}

// WithRedisClient sets the Redis client for the Redis limiter.
func WithRedisClient(client *redis.Client) LimiterOption {
	return func(c *limiterConfig) {
		c.redisClient = client
	}
}

// NewLimiter creates a new per-user rate limiter backed by the given driver.
// Supports "memory" and "redis" driver types.
// For Redis, requires WithRedisClient option.
func NewLimiter(driver DriverType, opts ...LimiterOption) (Limiter, error) {
	config := &limiterConfig{}
	for _, opt := range opts {
		opt(config)
	}

	perMinute := config.perMinute
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}

	switch driver {
	case DriverMemory:
		return newMemoryLimiter(perMinute), nil

	case DriverRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisLimiter{
			client:    config.redisClient,
			perMinute: perMinute,
		}, nil

	default:
		return nil, ErrInvalidDriver
	}
}
