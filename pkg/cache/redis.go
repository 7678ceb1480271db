package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared cache backed by Redis.
// Entries are kept for Retention after being stored so that stale entries can
// still be revalidated with a conditional request.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed store. retention <= 0 uses 30 minutes.
func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retention <= 0 {
		retention = DefaultMemoryConfig().Retention
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, s.retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
