// Package client provides the catalog HTTP client with request signing,
// response caching, and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/cache"
	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/Sternrassler/comics-catalog-client/pkg/signing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by endpoint and status",
	}, []string{"endpoint", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the public comics listing endpoint.
const DefaultBaseURL = "https://gateway.marvel.com/v1/public/comics"

// resultsPath is the location of the result set inside the response envelope.
const resultsPath = "data.results"

// Client is the catalog API client.
type Client struct {
	httpClient *http.Client
	builder    *signing.Builder
	cache      cache.Store
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the listing endpoint; comics by id live at BaseURL/{id}
	BaseURL string

	// Credentials (REQUIRED)
	PublicKey  string
	PrivateKey string

	// Signer overrides the MD5 request signature (optional)
	Signer signing.Signer

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// Cache stores responses for conditional requests (optional, nil disables caching)
	Cache cache.Store

	// CacheTTL is used when a response carries no Expires header
	CacheTTL time.Duration
}

// DefaultConfig returns a default configuration for the given credentials.
func DefaultConfig(publicKey, privateKey string) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		UserAgent:  "comics-catalog-client/1.0",
		Timeout:    30 * time.Second,
		CacheTTL:   cache.DefaultTTL,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	var opts []signing.Option
	if cfg.Signer != nil {
		opts = append(opts, signing.WithSigner(cfg.Signer))
	}
	builder, err := signing.NewBuilder(cfg.PublicKey, cfg.PrivateKey, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		builder:    builder,
		cache:      cfg.Cache,
		config:     cfg,
		logger:     logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Do performs a single GET request with caching and error classification.
// Non-2xx responses are returned as server-class errors; there are no retries.
// On success the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var (
		cacheKey    cache.Key
		cachedEntry *cache.Entry
	)
	if c.cache != nil {
		cacheKey = cache.KeyFromURL(req.URL)

		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		if entry != nil && !entry.IsExpired() {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Serving fresh cache entry")
			catalogRequestsTotal.WithLabelValues(endpoint, "cache").Inc()
			return cache.EntryToResponse(entry, req), nil
		}

		if entry != nil && cache.ShouldMakeConditionalRequest(entry) {
			cachedEntry = entry
			cache.AddConditionalHeaders(req, entry)
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", entry.ETag).
				Msg("Making conditional request")
		}
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		catalogRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &Error{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		catalogRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.Revalidations.Inc()

		cache.Refresh(cachedEntry, resp.Header, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, cachedEntry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	catalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		resp.Body.Close()
		catalogErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")
		return nil, &Error{Class: class, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	if c.cache != nil {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
		if err != nil {
			// the body is gone at this point, so this is a transport failure
			resp.Body.Close()
			catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &Error{Class: ErrorClassNetwork, StatusCode: resp.StatusCode, Message: "read body", Err: err}
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// get performs a GET for u and returns the response body.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Class: ErrorClassInvalidURL, Message: "create request", Err: err}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &Error{Class: ErrorClassNetwork, StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}
	return body, nil
}

// FetchPage fetches one page of the catalog listing.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]catalog.Item, error) {
	u, err := c.builder.ListURL(c.config.BaseURL, offset, limit)
	if err != nil {
		return nil, invalidURL(err)
	}

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	items, err := decodeResults[catalog.Item](body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Int("count", len(items)).
		Msg("Fetched page")
	return items, nil
}

// FetchResource fetches a server-provided resource URI and decodes its result set.
func FetchResource[T any](ctx context.Context, c *Client, resourceURI string) ([]T, error) {
	u, err := c.builder.ResourceURL(resourceURI)
	if err != nil {
		return nil, invalidURL(err)
	}

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return decodeResults[T](body)
}

// FetchSingle fetches a resource URI and returns its first result.
// An empty result set is a server-class error wrapping ErrEmptyResult.
func FetchSingle[T any](ctx context.Context, c *Client, resourceURI string) (T, error) {
	var zero T

	results, err := FetchResource[T](ctx, c, resourceURI)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return zero, &Error{Class: ErrorClassServer, Message: resourceURI, Err: ErrEmptyResult}
	}
	return results[0], nil
}

// FetchCreator fetches the creator behind a creators resource URI.
func (c *Client) FetchCreator(ctx context.Context, resourceURI string) (*catalog.Creator, error) {
	creator, err := FetchSingle[catalog.Creator](ctx, c, resourceURI)
	if err != nil {
		return nil, err
	}
	return &creator, nil
}

// FetchVariants fetches the items behind a variant resource URI.
func (c *Client) FetchVariants(ctx context.Context, resourceURI string) ([]catalog.Item, error) {
	return FetchResource[catalog.Item](ctx, c, resourceURI)
}

// FetchComic fetches a single comic by id.
func (c *Client) FetchComic(ctx context.Context, id int) (*catalog.Item, error) {
	uri := strings.TrimRight(c.config.BaseURL, "/") + "/" + strconv.Itoa(id)
	item, err := FetchSingle[catalog.Item](ctx, c, uri)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// decodeResults extracts data.results from the envelope and decodes each element.
func decodeResults[T any](body []byte) ([]T, error) {
	if !gjson.ValidBytes(body) {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &Error{Class: ErrorClassDecode, Message: "response is not valid JSON"}
	}

	results := gjson.GetBytes(body, resultsPath)
	if !results.Exists() || !results.IsArray() {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &Error{Class: ErrorClassDecode, Message: "missing " + resultsPath + " array"}
	}

	out := make([]T, 0, len(results.Array()))
	if err := json.Unmarshal([]byte(results.Raw), &out); err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &Error{Class: ErrorClassDecode, Message: "decode results", Err: err}
	}
	return out, nil
}

func invalidURL(err error) error {
	catalogErrorsTotal.WithLabelValues(string(ErrorClassInvalidURL)).Inc()
	return &Error{Class: ErrorClassInvalidURL, Message: "build request url", Err: err}
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// endpointLabel collapses numeric path segments to keep metric cardinality bounded.
func endpointLabel(path string) string {
	for {
		next := numericSegment.ReplaceAllString(path, "/{id}$1")
		if next == path {
			return path
		}
		path = next
	}
}
