// Package cache provides response caching for catalog API requests.
//
// Signed catalog URLs are unique per request (fresh ts/hash on every call), so
// cache keys are derived from the URL with the authentication parameters
// removed. Two backends implement Store:
//
//   - MemoryStore: bounded in-process LRU with TTL (default for embedded use)
//   - RedisStore: shared cache backed by Redis
//
// # Basic Usage
//
//	store := cache.NewMemoryStore(cache.DefaultMemoryConfig())
//
//	key := cache.KeyFromURL(signedURL)
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the catalog API
//	}
//
// # Conditional Requests
//
// The catalog API returns an etag for every result set. A stale entry that
// still carries an ETag is revalidated with If-None-Match; a 304 response
// refreshes the entry's expiry and the cached body is served.
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer} - Cache hits by layer ("memory", "redis")
//   - catalog_cache_misses_total{layer} - Cache misses by layer
//   - catalog_cache_revalidations_total - 304 Not Modified responses
//   - catalog_cache_errors_total{operation} - Cache operation errors
package cache
