// Package signing builds authenticated catalog API URLs.
//
// Every request carries three query parameters: the public key (apikey), a
// timestamp (ts) and a hash computed over ts + private key + public key.
// A fresh timestamp is generated for every URL; timestamps are never reused
// across requests.
package signing

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/catalog"
)

// Query parameter names used for request authentication.
const (
	ParamAPIKey    = "apikey"
	ParamTimestamp = "ts"
	ParamHash      = "hash"
	ParamOffset    = "offset"
	ParamLimit     = "limit"
)

// Signer computes the request signature token.
type Signer interface {
	Sign(timestamp, privateKey, publicKey string) string
}

// SignerFunc adapts a plain function to the Signer interface.
type SignerFunc func(timestamp, privateKey, publicKey string) string

// Sign implements Signer.
func (f SignerFunc) Sign(timestamp, privateKey, publicKey string) string {
	return f(timestamp, privateKey, publicKey)
}

// MD5Signer is the signature scheme required by the upstream API:
// lowercase hex md5(ts + privateKey + publicKey).
type MD5Signer struct{}

// Sign implements Signer.
func (MD5Signer) Sign(timestamp, privateKey, publicKey string) string {
	sum := md5.Sum([]byte(timestamp + privateKey + publicKey))
	return hex.EncodeToString(sum[:])
}

// InvalidURLError is returned when a base URL or resource URI cannot be used
// to build a request.
type InvalidURLError struct {
	URL    string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *InvalidURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid url %q: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// Builder creates signed URLs.
type Builder struct {
	publicKey  string
	privateKey string
	signer     Signer
	now        func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithSigner replaces the default MD5 signer.
func WithSigner(s Signer) Option {
	return func(b *Builder) {
		if s != nil {
			b.signer = s
		}
	}
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a Builder for the given credentials.
func NewBuilder(publicKey, privateKey string, opts ...Option) (*Builder, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, fmt.Errorf("public key is required")
	}
	if strings.TrimSpace(privateKey) == "" {
		return nil, fmt.Errorf("private key is required")
	}

	b := &Builder{
		publicKey:  publicKey,
		privateKey: privateKey,
		signer:     MD5Signer{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// ListURL builds a signed listing URL with offset and limit.
func (b *Builder) ListURL(baseURL string, offset, limit int) (*url.URL, error) {
	u, err := parseAbsolute(baseURL)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, &InvalidURLError{URL: baseURL, Reason: fmt.Sprintf("negative offset %d", offset)}
	}
	if limit <= 0 {
		return nil, &InvalidURLError{URL: baseURL, Reason: fmt.Sprintf("non-positive limit %d", limit)}
	}

	q := u.Query()
	b.authorize(q)
	q.Set(ParamOffset, strconv.Itoa(offset))
	q.Set(ParamLimit, strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u, nil
}

// ResourceURL builds a signed URL for a server-provided resource URI.
// Plain http URIs are upgraded to https.
func (b *Builder) ResourceURL(resourceURI string) (*url.URL, error) {
	u, err := parseAbsolute(catalog.SecureURL(strings.TrimSpace(resourceURI)))
	if err != nil {
		return nil, err
	}

	q := u.Query()
	b.authorize(q)
	u.RawQuery = q.Encode()
	return u, nil
}

// authorize sets apikey, a fresh ts and the matching hash.
func (b *Builder) authorize(q url.Values) {
	ts := formatTimestamp(b.now())
	q.Set(ParamAPIKey, b.publicKey)
	q.Set(ParamTimestamp, ts)
	q.Set(ParamHash, b.signer.Sign(ts, b.privateKey, b.publicKey))
}

// formatTimestamp renders seconds since epoch with microsecond precision.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

func parseAbsolute(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &InvalidURLError{URL: raw, Reason: "empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidURLError{URL: raw, Reason: "parse", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &InvalidURLError{URL: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &InvalidURLError{URL: raw, Reason: "missing host"}
	}
	return u, nil
}

// StripAuth returns a copy of q without the authentication parameters.
// Signed URLs are unique per call, so anything keyed on a URL must drop them.
func StripAuth(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		switch k {
		case ParamAPIKey, ParamTimestamp, ParamHash:
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}
