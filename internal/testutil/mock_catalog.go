// Package testutil provides testing utilities for the catalog client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
)

// ComicsPath is the listing path served by MockCatalog.
const ComicsPath = "/v1/public/comics"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock catalog server for testing.
//
// It serves the listing at ComicsPath, comics by id at ComicsPath/{id} and
// creators at ComicsPath/{id}/creators from in-memory fixtures. The server
// speaks TLS because resource URIs are always upgraded to https; use
// HTTPClient to talk to it.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	comics   []catalog.Item
	creators map[int][]catalog.Creator
	failures map[string]int
	delay    time.Duration
	etags    bool

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	LastQuery         map[string]string
	pathCounts        map[string]int
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		creators:   make(map[int][]catalog.Creator),
		failures:   make(map[string]int),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.pathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = make(map[string]string)
		for k := range r.URL.Query() {
			mock.LastQuery[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		status, failing := mock.failures[r.URL.Path]
		delay := mock.delay
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if failing {
			writeJSON(w, status, fmt.Sprintf(`{"code":%d,"status":"injected failure"}`, status))
			return
		}

		if !signed(r) {
			writeJSON(w, http.StatusConflict, `{"code":"MissingParameter","message":"You must provide a hash."}`)
			return
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// BaseURL returns the listing endpoint URL.
func (m *MockCatalog) BaseURL() string {
	return m.server.URL + ComicsPath
}

// ComicURI returns the resource URI of a comic, using the plain http scheme
// the upstream API hands out.
func (m *MockCatalog) ComicURI(id int) string {
	return m.insecure(fmt.Sprintf("%s/%d", ComicsPath, id))
}

// CreatorsURI returns the creators collection URI of a comic.
func (m *MockCatalog) CreatorsURI(id int) string {
	return m.insecure(fmt.Sprintf("%s/%d/creators", ComicsPath, id))
}

func (m *MockCatalog) insecure(path string) string {
	return "http:" + strings.TrimPrefix(m.server.URL, "https:") + path
}

// HTTPClient returns a client trusting the mock server certificate.
func (m *MockCatalog) HTTPClient() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
	m.pathCounts = make(map[string]int)
}

// SetComics replaces the listing fixture.
func (m *MockCatalog) SetComics(items []catalog.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comics = append([]catalog.Item(nil), items...)
}

// SetCreators sets the creators returned for a comic's creators collection.
func (m *MockCatalog) SetCreators(comicID int, creators ...catalog.Creator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creators[comicID] = creators
}

// Fail makes every request to path answer with status.
// Path is a server path such as ComicsPath + "/7".
func (m *MockCatalog) Fail(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = status
}

// Recover removes an injected failure.
func (m *MockCatalog) Recover(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, path)
}

// SetDelay delays every response.
func (m *MockCatalog) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// EnableETags makes fixture responses carry an ETag and answer matching
// conditional requests with 304.
func (m *MockCatalog) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockCatalog) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastQuery returns a query parameter of the most recent request.
func (m *MockCatalog) GetLastQuery(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery[name]
}

// defaultHandler serves the fixtures.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, ComicsPath)
	if !ok {
		writeJSON(w, http.StatusNotFound, `{"code":404,"status":"not found"}`)
		return
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case rest == "" || rest == "/":
		m.serveListing(w, r)
	case len(parts) == 1:
		m.serveComic(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "creators":
		m.serveCreators(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, `{"code":404,"status":"not found"}`)
	}
}

func (m *MockCatalog) serveListing(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	total := len(m.comics)
	var page []catalog.Item
	if offset < total {
		end := min(offset+limit, total)
		page = append(page, m.comics[offset:end]...)
	}
	m.mu.RUnlock()

	m.respond(w, r, page)
}

func (m *MockCatalog) serveComic(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, `{"code":404,"status":"not found"}`)
		return
	}

	m.mu.RLock()
	var found []catalog.Item
	for _, item := range m.comics {
		if item.ID == id {
			found = append(found, item)
			break
		}
	}
	m.mu.RUnlock()

	m.respond(w, r, found)
}

func (m *MockCatalog) serveCreators(w http.ResponseWriter, r *http.Request, rawID string) {
	id, _ := strconv.Atoi(rawID)

	m.mu.RLock()
	creators := m.creators[id]
	m.mu.RUnlock()

	m.respond(w, r, creators)
}

// respond writes results in the upstream envelope.
func (m *MockCatalog) respond(w http.ResponseWriter, r *http.Request, results any) {
	body := Envelope(results)

	m.mu.RLock()
	etags := m.etags
	m.mu.RUnlock()

	if etags {
		etag := fmt.Sprintf(`"%x"`, len(body))
		// already stale, so every later request is conditional
		w.Header().Set("Expires", time.Now().Add(-time.Minute).Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	writeJSON(w, http.StatusOK, body)
}

// Envelope wraps results in the upstream response envelope.
func Envelope(results any) string {
	raw, err := json.Marshal(results)
	if err != nil || string(raw) == "null" {
		raw = []byte("[]")
	}
	var count int
	var probe []json.RawMessage
	if json.Unmarshal(raw, &probe) == nil {
		count = len(probe)
	}
	return fmt.Sprintf(`{"code":200,"status":"Ok","data":{"count":%d,"results":%s}}`, count, raw)
}

// GenerateComics builds n listing fixtures with ids starting at firstID.
func GenerateComics(n, firstID int) []catalog.Item {
	items := make([]catalog.Item, n)
	for i := range items {
		id := firstID + i
		items[i] = catalog.Item{
			ID:          id,
			Title:       fmt.Sprintf("Comic #%d", id),
			Description: fmt.Sprintf("Issue %d", id),
			Thumbnail: catalog.Thumbnail{
				Path:      fmt.Sprintf("http://i.annihil.us/u/prod/marvel/i/mg/%d", id),
				Extension: "jpg",
			},
		}
	}
	return items
}

func signed(r *http.Request) bool {
	q := r.URL.Query()
	return q.Get("apikey") != "" && q.Get("ts") != "" && q.Get("hash") != ""
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// GenerateCreators builds n creator fixtures with ids starting at firstID.
func GenerateCreators(n, firstID int) []catalog.Creator {
	creators := make([]catalog.Creator, n)
	for i := range creators {
		id := firstID + i
		creators[i] = catalog.Creator{
			ID:       id,
			FullName: fmt.Sprintf("Creator %d", id),
		}
	}
	return creators
}
