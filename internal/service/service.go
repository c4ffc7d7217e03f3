// Package service hosts the query pipeline: resolve, execute, synthesize,
// deliver, cache. It also serves the audit log and cache management.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/finsight/orchestrator/internal/cache"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/engine"
	"github.com/finsight/orchestrator/internal/monitor"
	"github.com/finsight/orchestrator/internal/repository"
	"github.com/finsight/orchestrator/internal/resolver"
)

// historyLimit bounds how many prior turns feed the resolver.
const historyLimit = 10

type Service struct {
	store    repository.Store
	resolver resolver.Resolver
	engine   *engine.Engine
	cache    cache.Store
	monitor  *monitor.Monitor
	config   *config.Config
	group    singleflight.Group
}

func New(store repository.Store, res resolver.Resolver, eng *engine.Engine, cacheStore cache.Store, mon *monitor.Monitor, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		resolver: res,
		engine:   eng,
		cache:    cacheStore,
		monitor:  mon,
		config:   cfg,
	}
}

// Monitor exposes the metrics window for the transport layer.
func (s *Service) Monitor() *monitor.Monitor {
	return s.monitor
}

// ClearCache drops every cached response belonging to userID.
func (s *Service) ClearCache(ctx context.Context, userID string) error {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetQueryRun returns the audit record for one query, or nil when unknown.
func (s *Service) GetQueryRun(ctx context.Context, queryID string) (*domain.QueryRun, error) {
	run, err := s.store.GetQueryRun(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get query run: %w", err)
	}
	return run, nil
}

// GetQueryEvents returns persisted pipeline events for one query.
func (s *Service) GetQueryEvents(ctx context.Context, queryID string, afterTs int64, limit int) ([]domain.Event, error) {
	events, err := s.store.GetEvents(ctx, queryID, afterTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query events: %w", err)
	}
	return events, nil
}

// recordEvent persists one audit event. Failures are logged, never fatal.
func (s *Service) recordEvent(ctx context.Context, queryID string, eventType domain.EventType, payload any) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Printf("ERROR: failed to marshal %s payload: %v", eventType, err)
			return
		}
		raw = b
	}
	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		QueryID: queryID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: raw,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		log.Printf("ERROR: failed to record %s event: %v", eventType, err)
	}
}
