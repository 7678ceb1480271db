package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/comics-catalog-client/pkg/signing"
)

// Key identifies a cached catalog response.
type Key struct {
	// Resource is host + path of the request (e.g. "gateway.marvel.com/v1/public/comics")
	Resource string

	// Query holds the non-authentication query parameters (offset, limit, ...)
	Query url.Values
}

// KeyFromURL derives a cache key from a signed request URL.
// apikey, ts and hash are dropped so that repeated requests for the same
// resource map to the same key.
func KeyFromURL(u *url.URL) Key {
	if u == nil {
		return Key{}
	}
	return Key{
		Resource: u.Host + u.Path,
		Query:    signing.StripAuth(u.Query()),
	}
}

// String generates a deterministic cache key string.
// Format: catalog:resource:query1=val1:query2=val2
//
// Example:
//
//	catalog:gateway.marvel.com/v1/public/comics:limit=20:offset=40
func (k Key) String() string {
	parts := []string{"catalog"}

	resource := strings.Trim(k.Resource, "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.Query[name]...)
			sort.Strings(values)
			parts = append(parts, name+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
