package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/comics-catalog-client/internal/config"
	"github.com/Sternrassler/comics-catalog-client/pkg/cache"
	"github.com/Sternrassler/comics-catalog-client/pkg/client"
	"github.com/Sternrassler/comics-catalog-client/pkg/favorites"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// cacheRetention is how long cached responses are kept for revalidation.
const cacheRetention = 30 * time.Minute

// app wires the library components from the configuration. Components are
// created on first use so that commands only open what they need.
type app struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     zerolog.Logger

	redis  *redis.Client
	client *client.Client
	store  *favorites.SQLiteStore
	favs   *favorites.Service
}

func newApp(cfg *config.Config, httpClient *http.Client) *app {
	return &app{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logging.NewLogger(logging.ComponentCLI),
	}
}

// catalogClient returns the catalog client, connecting the cache on first use.
func (a *app) catalogClient(ctx context.Context) (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	store, err := a.cacheStore(ctx)
	if err != nil {
		return nil, err
	}

	cl, err := client.New(client.Config{
		BaseURL:    a.cfg.Catalog.BaseURL,
		PublicKey:  a.cfg.Catalog.PublicKey,
		PrivateKey: a.cfg.Catalog.PrivateKey,
		UserAgent:  a.cfg.Catalog.UserAgent,
		Timeout:    a.cfg.Catalog.Timeout,
		Cache:      store,
		CacheTTL:   a.cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	if a.httpClient != nil {
		cl.SetHTTPClient(a.httpClient)
	}

	a.client = cl
	return cl, nil
}

func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}

	if a.cfg.Cache.RedisURL == "" {
		a.logger.Debug().Int("size", a.cfg.Cache.MemorySize).Msg("Using in-memory response cache")
		return cache.NewMemoryStore(cache.MemoryConfig{
			Size:      a.cfg.Cache.MemorySize,
			Retention: cacheRetention,
		}), nil
	}

	opts, err := a.cfg.Cache.RedisOptions()
	if err != nil {
		return nil, err
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	a.logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	a.redis = rc
	return cache.NewRedisStore(rc, cacheRetention), nil
}

// favorites returns the favorites service, opening the database on first use.
func (a *app) favorites() (*favorites.Service, error) {
	if a.favs != nil {
		return a.favs, nil
	}

	store, err := favorites.Open(a.cfg.Favorites.Path)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.favs = favorites.NewService(store)
	return a.favs, nil
}

// ping checks the external dependencies that were opened.
func (a *app) ping(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases everything that was opened.
func (a *app) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
