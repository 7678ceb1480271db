package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
	"github.com/Sternrassler/comics-catalog-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var favoriteChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_favorite_changes_total",
	Help: "Favorite additions and removals",
}, []string{"op"}) // "add", "remove"

// Service implements the favorite toggle on top of a Store.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a service.
func NewService(store Store) *Service {
	if store == nil {
		panic("favorites store cannot be nil")
	}
	return &Service{
		store:  store,
		logger: logging.NewLogger(logging.ComponentFavorites),
	}
}

// IsFavorite reports whether the item with id is saved.
func (s *Service) IsFavorite(ctx context.Context, id int) (bool, error) {
	return s.store.Exists(ctx, id)
}

// Add saves item, updating its details if it is already saved.
func (s *Service) Add(ctx context.Context, item catalog.Item) error {
	if err := s.store.Upsert(ctx, FromItem(item)); err != nil {
		return err
	}
	favoriteChangesTotal.WithLabelValues("add").Inc()
	s.logger.Info().Int("id", item.ID).Str("title", item.Title).Msg("Favorite added")
	return nil
}

// Remove deletes the favorite with id. Removing a missing favorite is not an error.
func (s *Service) Remove(ctx context.Context, id int) error {
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	favoriteChangesTotal.WithLabelValues("remove").Inc()
	s.logger.Info().Int("id", id).Msg("Favorite removed")
	return nil
}

// Toggle flips the favorite state of item and returns the new state.
func (s *Service) Toggle(ctx context.Context, item catalog.Item) (bool, error) {
	saved, err := s.store.Exists(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("toggle favorite %d: %w", item.ID, err)
	}
	if saved {
		return false, s.Remove(ctx, item.ID)
	}
	return true, s.Add(ctx, item)
}

// List returns all favorites as catalog items, most recently saved first.
func (s *Service) List(ctx context.Context) ([]catalog.Item, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0, len(records))
	for _, r := range records {
		items = append(items, r.Item())
	}
	return items, nil
}
