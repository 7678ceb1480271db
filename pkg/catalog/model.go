// Package catalog defines the wire model of the comics catalog API.
//
// The upstream API wraps every result set in an envelope:
//
//	{"code": 200, "etag": "...", "data": {"offset": 0, "limit": 20, "total": 5000, "count": 20, "results": [...]}}
//
// Only the element types are modelled here; the client extracts data.results itself.
package catalog

import "strings"

// Item is a single comic as returned by the catalog listing and detail endpoints.
// Items are immutable once decoded and are identified by ID.
type Item struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Thumbnail   Thumbnail    `json:"thumbnail"`
	Variants    []Summary    `json:"variants,omitempty"`
	Creators    *CreatorList `json:"creators,omitempty"`
}

// RelatedResourceURIs returns the variant resource URIs in server order.
// Summaries without a resource URI are skipped.
func (i Item) RelatedResourceURIs() []string {
	uris := make([]string, 0, len(i.Variants))
	for _, v := range i.Variants {
		if strings.TrimSpace(v.ResourceURI) == "" {
			continue
		}
		uris = append(uris, v.ResourceURI)
	}
	return uris
}

// CreatorsCollectionURI returns the creators collection URI, or "" if the item has none.
func (i Item) CreatorsCollectionURI() string {
	if i.Creators == nil {
		return ""
	}
	return strings.TrimSpace(i.Creators.CollectionURI)
}

// Thumbnail is an image reference split into base path and file extension.
type Thumbnail struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// ResolvedURL upgrades the path to https and appends the extension.
// Returns "" when the thumbnail has no path.
func (t Thumbnail) ResolvedURL() string {
	if t.Path == "" {
		return ""
	}
	path := SecureURL(t.Path)
	if t.Extension == "" {
		return path
	}
	return path + "." + t.Extension
}

// SecureURL rewrites a leading "http:" scheme to "https:".
func SecureURL(raw string) string {
	if strings.HasPrefix(raw, "http:") {
		return "https:" + strings.TrimPrefix(raw, "http:")
	}
	return raw
}

// Summary is a reference to a related resource (e.g. a variant cover).
type Summary struct {
	ResourceURI string `json:"resourceURI"`
	Name        string `json:"name"`
}

// CreatorList references the creators of an item.
type CreatorList struct {
	Available     int              `json:"available"`
	CollectionURI string           `json:"collectionURI"`
	Items         []CreatorSummary `json:"items,omitempty"`
}

// CreatorSummary is the inline creator reference carried by an item.
type CreatorSummary struct {
	ResourceURI string `json:"resourceURI"`
	Name        string `json:"name"`
	Role        string `json:"role"`
}

// Creator is the detail record of a creator.
type Creator struct {
	ID        int       `json:"id"`
	FullName  string    `json:"fullName"`
	Thumbnail Thumbnail `json:"thumbnail"`
}
