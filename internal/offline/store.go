// Package offline keeps named caches of HTTP responses and serves them back
// under two policies: cache-first for the app shell and stale-while-revalidate
// for the weather API origin.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetchFailed is returned when an entry could not be retrieved for storage.
var ErrFetchFailed = errors.New("offline fetch failed")

// ErrNotInstalled is returned by Worker.Check when the active version cache is missing.
var ErrNotInstalled = errors.New("offline shell cache not installed")

// Entry is one stored response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Store is the backend holding named caches. Implementations must be safe for
// concurrent use.
type Store interface {
	Names(ctx context.Context) ([]string, error)
	Create(ctx context.Context, cache string) error
	Has(ctx context.Context, cache string) (bool, error)
	Delete(ctx context.Context, cache string) (bool, error)
	Get(ctx context.Context, cache, key string) (Entry, bool, error)
	Put(ctx context.Context, cache, key string, e Entry) error
	PutAll(ctx context.Context, cache string, entries map[string]Entry) error
	Ping(ctx context.Context) error
}

// EntryFromResponse drains resp.Body into an Entry. The body is closed.
func EntryFromResponse(resp *http.Response) (Entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("read response body: %w", err)
	}
	return Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Response rebuilds an *http.Response from the entry. Each call gets its own body reader.
func (e Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Serve copies the entry onto w.
func (e Entry) Serve(w http.ResponseWriter) {
	for k, vs := range e.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

func cacheable(status int) bool {
	return status >= 200 && status < 300
}

// requestKey identifies a GET request within a cache. Absolute URLs keep their
// origin; server-side requests are keyed by path and query.
func requestKey(req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	if req.URL.RawQuery != "" {
		return req.URL.Path + "?" + req.URL.RawQuery
	}
	return req.URL.Path
}
