// Package metrics exposes the Prometheus metrics of the catalog client.
// All metrics are defined in their respective packages (client, cache,
// pagination, detail, search, favorites) and registered via promauto.
//
// This package provides the HTTP handler and a reference of what is exported.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all catalog metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cache", "304", "network_error" for non-network outcomes)
//   - catalog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - catalog_errors_total{class} (Counter): Errors by class (invalid_url, network, decode, server)
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - catalog_cache_misses_total{layer} (Counter): Cache misses by layer
//   - catalog_cache_revalidations_total (Counter): 304 responses served from cache
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Collection Metrics (pkg/pagination):
//   - catalog_pages_fetched_total{result} (Counter): Page fetches (ok, empty, failed, stale)
//   - catalog_items_deduplicated_total (Counter): Items dropped as duplicates
//
// Detail Metrics (pkg/detail):
//   - catalog_subfetches_total{kind, result} (Counter): Sub-fetches by kind (creator, variant) and result
//   - catalog_detail_settle_seconds (Histogram): Time until a detail session settles
//
// Search and Favorites:
//   - catalog_search_emissions_total{result} (Counter): Debounced queries emitted or suppressed
//   - catalog_favorite_changes_total{op} (Counter): Favorites added or removed
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Variant failure ratio
//   sum(rate(catalog_subfetches_total{kind="variant",result="failed"}[5m])) /
//   sum(rate(catalog_subfetches_total{kind="variant"}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
