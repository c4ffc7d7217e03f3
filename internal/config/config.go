// Package config provides configuration for the query orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM resolver settings
	LLMURL     string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Pipeline budgets
	PipelineTimeout time.Duration
	ExecTimeout     time.Duration

	// Cache
	CacheDriver string
	CacheTTL    time.Duration
	RedisAddr   string

	// Rate limiting
	RateLimitDriver string
	RateLimitPerMin int

	// Session verification
	SessionURL string

	// Monitoring
	MonitorWindow     time.Duration
	MonitorMaxSamples int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "file:finsight.db?cache=shared&mode=rwc"),
		LLMURL:            getEnv("LLM_URL", "http://localhost:4000"),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:        time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		PipelineTimeout:   time.Duration(getEnvInt("PIPELINE_TIMEOUT_MS", 60000)) * time.Millisecond,
		ExecTimeout:       time.Duration(getEnvInt("EXEC_TIMEOUT_MS", 15000)) * time.Millisecond,
		CacheDriver:       getEnv("CACHE_DRIVER", "memory"),
		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL_MS", 300000)) * time.Millisecond,
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RateLimitDriver:   getEnv("RATE_LIMIT_DRIVER", "memory"),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 60),
		SessionURL:        getEnv("SESSION_URL", "http://localhost:8090"),
		MonitorWindow:     time.Duration(getEnvInt("MONITOR_WINDOW_MS", 900000)) * time.Millisecond,
		MonitorMaxSamples: getEnvInt("MONITOR_MAX_SAMPLES", 10000),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
