// Package config loads the catalog tool configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables (optionally read from a .env file). Environment
// variables only override when they are set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config holds all settings of the catalog tool.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Favorites FavoritesConfig `yaml:"favorites"`
	Search    SearchConfig    `yaml:"search"`
	Log       LogConfig       `yaml:"log"`
}

// CatalogConfig configures the upstream API.
type CatalogConfig struct {
	BaseURL    string        `yaml:"base_url"`
	PublicKey  string        `yaml:"public_key"`
	PrivateKey string        `yaml:"private_key"`
	PageSize   int           `yaml:"page_size"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
}

// CacheConfig configures the response cache. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	RedisURL   string        `yaml:"redis_url"`
	TTL        time.Duration `yaml:"ttl"`
	MemorySize int           `yaml:"memory_size"`
}

// FavoritesConfig configures the favorites database.
type FavoritesConfig struct {
	Path string `yaml:"path"`
}

// SearchConfig configures query debouncing.
type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// env mirrors the supported environment variables. Zero values mean unset.
type env struct {
	PublicKey  string        `env:"CATALOG_PUBLIC_KEY"`
	PrivateKey string        `env:"CATALOG_PRIVATE_KEY"`
	BaseURL    string        `env:"CATALOG_BASE_URL"`
	PageSize   int           `env:"CATALOG_PAGE_SIZE"`
	Timeout    time.Duration `env:"CATALOG_TIMEOUT"`
	RedisURL   string        `env:"REDIS_URL"`
	Favorites  string        `env:"FAVORITES_DB"`
	LogLevel   string        `env:"LOG_LEVEL"`
	LogPretty  string        `env:"LOG_PRETTY"`
	Debounce   time.Duration `env:"SEARCH_DEBOUNCE"`
}

// Default returns the built-in defaults. Credentials are left empty.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{
			BaseURL:   "https://gateway.marvel.com/v1/public/comics",
			PageSize:  20,
			Timeout:   30 * time.Second,
			UserAgent: "comics-catalog-client/1.0",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MemorySize: 512,
		},
		Favorites: FavoritesConfig{
			Path: filepath.Join("data", "favorites.db"),
		},
		Search: SearchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path is an optional YAML file; envFiles
// are .env files to read (default ".env"), missing ones are skipped.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var e env
	if err := envdecode.Decode(&e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.apply(e); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) apply(e env) error {
	setString(&c.Catalog.PublicKey, e.PublicKey)
	setString(&c.Catalog.PrivateKey, e.PrivateKey)
	setString(&c.Catalog.BaseURL, e.BaseURL)
	setString(&c.Cache.RedisURL, e.RedisURL)
	setString(&c.Favorites.Path, e.Favorites)
	setString(&c.Log.Level, e.LogLevel)

	if e.PageSize != 0 {
		c.Catalog.PageSize = e.PageSize
	}
	if e.Timeout != 0 {
		c.Catalog.Timeout = e.Timeout
	}
	if e.Debounce != 0 {
		c.Search.Debounce = e.Debounce
	}
	if e.LogPretty != "" {
		pretty, err := strconv.ParseBool(e.LogPretty)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = pretty
	}
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.Catalog.PublicKey == "" {
		return fmt.Errorf("CATALOG_PUBLIC_KEY is required")
	}
	if c.Catalog.PrivateKey == "" {
		return fmt.Errorf("CATALOG_PRIVATE_KEY is required")
	}

	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog base_url must be an absolute http(s) URL (got %q)", c.Catalog.BaseURL)
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog page_size must be > 0 (got %d)", c.Catalog.PageSize)
	}
	if c.Catalog.Timeout < 0 {
		return fmt.Errorf("catalog timeout must be >= 0 (got %s)", c.Catalog.Timeout)
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search debounce must be >= 0 (got %s)", c.Search.Debounce)
	}
	if c.Cache.RedisURL != "" {
		if _, err := c.Cache.RedisOptions(); err != nil {
			return err
		}
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// RedisOptions parses RedisURL.
func (c CacheConfig) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
