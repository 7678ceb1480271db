package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/comics-catalog-client/internal/config"
	"github.com/Sternrassler/comics-catalog-client/internal/testutil"
	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
)

// setupCLI points the configuration at mock and returns options using its transport.
func setupCLI(t *testing.T, mock *testutil.MockCatalog) *options {
	t.Helper()

	t.Setenv("CATALOG_PUBLIC_KEY", "pub")
	t.Setenv("CATALOG_PRIVATE_KEY", "priv")
	t.Setenv("CATALOG_BASE_URL", mock.BaseURL())
	t.Setenv("CATALOG_PAGE_SIZE", "")
	t.Setenv("CATALOG_TIMEOUT", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("FAVORITES_DB", filepath.Join(t.TempDir(), "favorites.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_PRETTY", "")
	t.Setenv("SEARCH_DEBOUNCE", "10ms")

	return &options{httpClient: mock.HTTPClient()}
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, opts *options, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))

	err := root.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(45, 1))
	opts := setupCLI(t, mock)

	out, err := run(t, opts, "list", "--limit", "20", "--pages", "2")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if !strings.Contains(out, "Comic #40") {
		t.Errorf("Expected output to contain Comic #40, got:\n%s", out)
	}
	if strings.Contains(out, "Comic #41") {
		t.Errorf("Expected only two pages, got:\n%s", out)
	}
	if !strings.Contains(out, "40 of 40 comics shown (next offset 40)") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "https://i.annihil.us/u/prod/marvel/i/mg/1.jpg") {
		t.Errorf("Expected resolved thumbnail URL, got:\n%s", out)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestListCommand_Offset(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(20, 1))
	opts := setupCLI(t, mock)

	out, err := run(t, opts, "list", "--offset", "10", "--limit", "5")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if got := mock.GetLastQuery("offset"); got != "10" {
		t.Errorf("Expected offset=10, got %q", got)
	}
	if got := mock.GetLastQuery("limit"); got != "5" {
		t.Errorf("Expected limit=5, got %q", got)
	}
	if !strings.Contains(out, "Comic #11") || strings.Contains(out, "Comic #16") {
		t.Errorf("Expected comics 11-15, got:\n%s", out)
	}
	if !strings.Contains(out, "(next offset 15)") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
}

func TestListCommand_QueryAndEnd(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(45, 1))
	opts := setupCLI(t, mock)

	out, err := run(t, opts, "list", "--limit", "20", "--pages", "5", "--query", "#4")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	// 20 + 20 + 5 items, then an empty page
	if got := mock.GetRequestCount(); got != 4 {
		t.Errorf("Expected 4 requests, got %d", got)
	}
	if !strings.Contains(out, "7 of 45 comics shown (next offset 45, end of catalog)") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
	if strings.Contains(out, "Comic #39") {
		t.Errorf("Filtered output contains non-matching comic:\n%s", out)
	}
}

func TestListCommand_ServerError(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.Fail(testutil.ComicsPath, http.StatusInternalServerError)
	opts := setupCLI(t, mock)

	_, err := run(t, opts, "list")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Expected server error, got %v", err)
	}
}

func TestListCommand_InvalidFlags(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	opts := setupCLI(t, mock)

	for _, args := range [][]string{
		{"list", "--offset", "-1"},
		{"list", "--limit", "-5"},
		{"list", "--pages", "0"},
	} {
		if _, err := run(t, opts, args...); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("Expected no requests, got %d", got)
	}
}

func TestDetailCommand(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()

	comics := testutil.GenerateComics(4, 1)
	comics[0].Variants = []catalog.Summary{
		{ResourceURI: mock.ComicURI(2)},
		{ResourceURI: mock.ComicURI(3)},
		{ResourceURI: mock.ComicURI(4)},
	}
	comics[0].Creators = &catalog.CreatorList{CollectionURI: mock.CreatorsURI(1)}
	mock.SetComics(comics)
	mock.SetCreators(1, catalog.Creator{ID: 77, FullName: "Steve Ditko"})
	mock.Fail(testutil.ComicsPath+"/3", http.StatusInternalServerError)
	opts := setupCLI(t, mock)

	out, err := run(t, opts, "detail", "1", "--concurrency", "2")
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}

	for _, want := range []string{
		"#1 Comic #1",
		"Creator:   Steve Ditko",
		"Favorite:  no",
		"Variants (2):",
		"Comic #2",
		"Comic #4",
		"Failed variants:",
		mock.ComicURI(3),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDetailCommand_Errors(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(1, 1))
	opts := setupCLI(t, mock)

	if _, err := run(t, opts, "detail", "abc"); err == nil || !strings.Contains(err.Error(), "invalid comic id") {
		t.Errorf("Expected invalid id error, got %v", err)
	}
	if _, err := run(t, opts, "detail", "99"); err == nil {
		t.Error("Expected error for unknown comic")
	}
	if _, err := run(t, opts, "detail"); err == nil {
		t.Error("Expected argument error")
	}
}

func TestFavoritesCommands(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(3, 1))
	opts := setupCLI(t, mock)

	out, err := run(t, opts, "favorites", "list")
	if err != nil {
		t.Fatalf("favorites list failed: %v", err)
	}
	if !strings.Contains(out, "No favorites yet.") {
		t.Errorf("Expected empty list, got:\n%s", out)
	}

	for _, id := range []string{"1", "2"} {
		if _, err := run(t, opts, "favorites", "add", id); err != nil {
			t.Fatalf("favorites add %s failed: %v", id, err)
		}
	}

	out, err = run(t, opts, "detail", "2")
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}
	if !strings.Contains(out, "Favorite:  yes") {
		t.Errorf("Expected comic 2 to be a favorite, got:\n%s", out)
	}

	if _, err := run(t, opts, "favorites", "remove", "1"); err != nil {
		t.Fatalf("favorites remove failed: %v", err)
	}
	// removing twice is not an error
	if _, err := run(t, opts, "fav", "rm", "1"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}

	out, err = run(t, opts, "favorites", "list")
	if err != nil {
		t.Fatalf("favorites list failed: %v", err)
	}
	if !strings.Contains(out, "Comic #2") || strings.Contains(out, "Comic #1 ") {
		t.Errorf("Expected only comic 2, got:\n%s", out)
	}

	if _, err := run(t, opts, "favorites", "add", "99"); err == nil {
		t.Error("Expected error adding unknown comic")
	}
}

func TestMissingCredentials(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	opts := setupCLI(t, mock)
	t.Setenv("CATALOG_PUBLIC_KEY", "")

	_, err := run(t, opts, "list")
	if err == nil || err.Error() != "CATALOG_PUBLIC_KEY is required" {
		t.Errorf("Expected missing key error, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_NoRedis(t *testing.T) {
	cfg := config.Default()
	a := newApp(&cfg, nil)
	defer a.Close()

	w := httptest.NewRecorder()
	readyHandler(a)(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetComics(testutil.GenerateComics(3, 1))
	opts := setupCLI(t, mock)

	// one request so the labelled series exist
	if _, err := run(t, opts, "list"); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	cfg := config.Default()
	a := newApp(&cfg, nil)
	defer a.Close()

	w := httptest.NewRecorder()
	newServeMux(a).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{
		"catalog_requests_total",
		"catalog_request_duration_seconds",
		"catalog_pages_fetched_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %s in output", metric)
		}
	}
}

func loadTestConfig(t *testing.T, opts *options) *config.Config {
	t.Helper()
	cfg, err := config.Load(opts.configPath, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
