package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finsight/orchestrator/internal/domain"
)

const keyPrefix = "finsight:resp:"

// redisStore implements Store on Redis. Alongside each response it maintains
// a per-user set of fingerprints so InvalidateUser never has to SCAN.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func dataKey(key string) string {
	return keyPrefix + "k:" + key
}

func userSetKey(userID string) string {
	return keyPrefix + "user:" + userID
}

// Lookup implements Store.
func (s *redisStore) Lookup(ctx context.Context, key string) (*domain.QueryResponse, error) {
	val, err := s.client.Get(ctx, dataKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp domain.QueryResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Put implements Store.
func (s *redisStore) Put(ctx context.Context, key, userID string, resp *domain.QueryResponse) error {
	val, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey(key), val, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), key)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate implements Store.
func (s *redisStore) Invalidate(ctx context.Context, key string) error {
	return s.client.Del(ctx, dataKey(key)).Err()
}

// InvalidateUser implements Store.
func (s *redisStore) InvalidateUser(ctx context.Context, userID string) error {
	keys, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, dataKey(key))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
