package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultTTL is the fallback TTL when the response carries no Expires header
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts a successful HTTP response to an Entry.
// The body is read and restored so the caller can still consume it.
// The ETag header wins over the etag field of the response envelope.
func ResponseToEntry(resp *http.Response, fallbackTTL time.Duration) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		CachedAt:   time.Now(),
		Expires:    parseExpires(resp.Header, fallbackTTL),
	}

	if entry.ETag == "" {
		entry.ETag = gjson.GetBytes(body, "etag").String()
	}

	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry, nil
}

// EntryToResponse rebuilds an HTTP response from a cached entry.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json; charset=utf-8")
	if entry.ETag != "" {
		header.Set("ETag", entry.ETag)
	}
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// parseExpires returns the Expires header time, or now + fallback when the
// header is missing or unparseable. Past dates yield now (already stale).
func parseExpires(headers http.Header, fallback time.Duration) time.Time {
	if fallback <= 0 {
		fallback = DefaultTTL
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(fallback)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(fallback)
	}

	if expires.Before(time.Now()) {
		return time.Now()
	}
	return expires
}

// ShouldMakeConditionalRequest reports whether a conditional request can be
// made for entry.
func ShouldMakeConditionalRequest(entry *Entry) bool {
	if entry == nil {
		return false
	}
	return entry.Revalidatable()
}

// AddConditionalHeaders sets If-None-Match (preferred) or If-Modified-Since.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}

// Refresh extends a revalidated entry from the headers of a 304 response.
func Refresh(entry *Entry, headers http.Header, fallbackTTL time.Duration) {
	if entry == nil {
		return
	}
	entry.Expires = parseExpires(headers, fallbackTTL)
	entry.CachedAt = time.Now()
	if etag := headers.Get("ETag"); etag != "" {
		entry.ETag = etag
	}
}
