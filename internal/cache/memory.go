package cache

import (
	"context"
	"sync"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

type memoryEntry struct {
	resp      *domain.QueryResponse
	userID    string
	expiresAt time.Time
}

// memoryStore implements Store with an in-process map. Expired entries are
// dropped lazily on read and periodically by a background sweep.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func newMemoryStore(ttl, sweepInterval time.Duration) *memoryStore {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &memoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Lookup implements Store.
func (s *memoryStore) Lookup(ctx context.Context, key string) (*domain.QueryResponse, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, nil
	}
	return entry.resp.Clone(), nil
}

// Put implements Store.
func (s *memoryStore) Put(ctx context.Context, key, userID string, resp *domain.QueryResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		return ErrInvalidConfig
	}
	s.entries[key] = memoryEntry{
		resp:      resp.Clone(),
		userID:    userID,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Invalidate implements Store.
func (s *memoryStore) Invalidate(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// InvalidateUser implements Store.
func (s *memoryStore) InvalidateUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.userID == userID {
			delete(s.entries, key)
		}
	}
	return nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func (s *memoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
