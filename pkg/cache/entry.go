package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a response cache backend.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss.
	// Stale entries are returned as long as the backend still holds them so
	// that callers can revalidate them.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores an entry.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Delete removes an entry.
	Delete(ctx context.Context, key Key) error
}

// Entry represents a cached catalog response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// LastModified from the Last-Modified header, if any
	LastModified time.Time `json:"last_modified"`

	// StatusCode of the cached response
	StatusCode int `json:"status_code"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry is stale.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Revalidatable reports whether a stale entry can be refreshed with a
// conditional request instead of being discarded.
func (e *Entry) Revalidatable() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
