// Package favorites persists the items a user marked as favorite.
package favorites

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
)

// ErrNotFound is returned when a favorite does not exist.
var ErrNotFound = errors.New("favorite not found")

// defaultExtension is assumed for thumbnail URLs without one.
const defaultExtension = "jpg"

// Store is the persistence contract for favorites.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]Record, error)
	Exists(ctx context.Context, id int) (bool, error)
}

// Record is a saved favorite.
type Record struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// FromItem builds a record from a catalog item. SavedAt is left zero and
// filled in by the store.
func FromItem(item catalog.Item) Record {
	return Record{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		ThumbnailURL: item.Thumbnail.ResolvedURL(),
	}
}

// Item rebuilds a catalog item from the record, splitting the thumbnail
// URL back into path and extension.
func (r Record) Item() catalog.Item {
	return catalog.Item{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Thumbnail:   splitThumbnail(r.ThumbnailURL),
	}
}

func splitThumbnail(raw string) catalog.Thumbnail {
	if raw == "" {
		return catalog.Thumbnail{}
	}

	slash := strings.LastIndex(raw, "/")
	dot := strings.LastIndex(raw, ".")
	if dot <= slash || dot == len(raw)-1 {
		return catalog.Thumbnail{Path: strings.TrimSuffix(raw, "."), Extension: defaultExtension}
	}
	return catalog.Thumbnail{Path: raw[:dot], Extension: raw[dot+1:]}
}
