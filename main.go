package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finsight/orchestrator/internal/auth"
	"github.com/finsight/orchestrator/internal/cache"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/engine"
	"github.com/finsight/orchestrator/internal/functions"
	"github.com/finsight/orchestrator/internal/monitor"
	"github.com/finsight/orchestrator/internal/policy"
	"github.com/finsight/orchestrator/internal/ratelimit"
	"github.com/finsight/orchestrator/internal/repository"
	"github.com/finsight/orchestrator/internal/resolver"
	"github.com/finsight/orchestrator/internal/service"
	handler "github.com/finsight/orchestrator/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Cache driver: %s", cfg.CacheDriver)
	log.Printf("Rate limit driver: %s", cfg.RateLimitDriver)

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.SeedDemoData(ctx); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	// Initialize function catalog
	catalog := functions.NewBuiltinCatalog(db)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Shared Redis client for drivers that need one
	var redisClient *redis.Client
	if cfg.CacheDriver == "redis" || cfg.RateLimitDriver == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
	}

	// Initialize response cache
	cacheStore, err := cache.NewStore(cache.DriverType(cfg.CacheDriver),
		cache.WithTTL(cfg.CacheTTL),
		cache.WithRedisClient(redisClient),
	)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheStore.Close()

	// Initialize rate limiter
	limiter, err := ratelimit.NewLimiter(ratelimit.DriverType(cfg.RateLimitDriver),
		ratelimit.WithPerMinute(cfg.RateLimitPerMin),
		ratelimit.WithRedisClient(redisClient),
	)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	defer limiter.Close()

	// Initialize service
	svc := service.New(
		db,
		resolver.New(cfg, catalog),
		engine.New(catalog, policyEngine, cfg.ExecTimeout),
		cacheStore,
		monitor.New(cfg.MonitorWindow, cfg.MonitorMaxSamples),
		cfg,
	)

	// Session verification
	var verifier auth.Verifier = auth.NewHTTPVerifier(cfg.SessionURL)
	if os.Getenv(resolver.EnvMode) == resolver.ModeMock {
		log.Println("FINSIGHT_MODE=MOCK detected, using static session verifier")
		verifier = auth.StaticVerifier{}
	}

	// Create HTTP server
	server := handler.NewServer(svc, verifier, limiter)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
