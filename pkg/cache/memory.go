package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryConfig configures the in-process cache.
type MemoryConfig struct {
	// Size is the maximum number of entries kept
	Size int

	// Retention is how long an entry is kept after it was stored, including
	// the time it spends stale waiting for revalidation
	Retention time.Duration
}

// DefaultMemoryConfig returns a configuration suited to a single browsing session.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Size:      512,
		Retention: 30 * time.Minute,
	}
}

// MemoryStore is a bounded LRU cache with per-entry retention.
type MemoryStore struct {
	lru *expirable.LRU[string, *Entry]
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.Size <= 0 {
		cfg.Size = DefaultMemoryConfig().Size
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultMemoryConfig().Retention
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, *Entry](cfg.Size, nil, cfg.Retention),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	entry, ok := m.lru.Get(key.String())
	if !ok {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	clone := *entry
	return &clone, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache entry cannot be nil")
	}
	clone := *entry
	m.lru.Add(key.String(), &clone)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.lru.Remove(key.String())
	return nil
}

// Len returns the number of entries currently held.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}
