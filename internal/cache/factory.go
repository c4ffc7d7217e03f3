package cache

import "time"

// DriverType represents the type of cache store.
type DriverType string

const (
	DriverMemory DriverType = "memory"
	DriverRedis  DriverType = "redis"
)

const defaultTTL = 5 * time.Minute

// NewStore creates a new response cache backed by the given driver.
// Supports "memory" and "redis" driver types.
// For Redis, requires WithRedisClient option.
func NewStore(driver DriverType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	ttl := config.ttl
	if ttl <= 0 {
		ttl = defaultTTL
	}

	switch driver {
	case DriverMemory:
		return newMemoryStore(ttl, config.sweepInterval), nil

	case DriverRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client: config.redisClient,
			ttl:    ttl,
		}, nil

	default:
		return nil, ErrInvalidDriver
	}
}
