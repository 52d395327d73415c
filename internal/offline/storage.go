package offline

import (
	"context"
	"fmt"
	"net/http"
)

// CacheStorage is the set of named caches backed by a Store.
type CacheStorage struct {
	store Store
}

// NewCacheStorage wraps store.
func NewCacheStorage(store Store) *CacheStorage {
	return &CacheStorage{store: store}
}

// Open returns the named cache, creating it if needed.
func (s *CacheStorage) Open(ctx context.Context, name string) (*Cache, error) {
	if err := s.store.Create(ctx, name); err != nil {
		return nil, err
	}
	return &Cache{name: name, store: s.store}, nil
}

// Keys lists cache names.
func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	return s.store.Names(ctx)
}

// Delete removes the named cache. Reports whether it existed.
func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	return s.store.Delete(ctx, name)
}

// Has reports whether the named cache exists.
func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	return s.store.Has(ctx, name)
}

// Ping checks the backing store.
func (s *CacheStorage) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Cache is one named cache of GET responses.
type Cache struct {
	name  string
	store Store
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Match returns the stored entry for req.
func (c *Cache) Match(ctx context.Context, req *http.Request) (Entry, bool, error) {
	return c.store.Get(ctx, c.name, requestKey(req))
}

// Put stores e under req.
func (c *Cache) Put(ctx context.Context, req *http.Request, e Entry) error {
	return c.store.Put(ctx, c.name, requestKey(req), e)
}

// AddAll fetches every url through rt and stores the responses. Nothing is
// stored unless every fetch returns a 2xx response.
func (c *Cache) AddAll(ctx context.Context, rt http.RoundTripper, urls []string) error {
	entries := make(map[string]Entry, len(urls))
	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("build request %s: %w", u, err)
		}
		resp, err := rt.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFetchFailed, u, err)
		}
		e, err := EntryFromResponse(resp)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrFetchFailed, u, err)
		}
		if !cacheable(e.Status) {
			return fmt.Errorf("%w: %s: status %d", ErrFetchFailed, u, e.Status)
		}
		entries[requestKey(req)] = e
	}
	return c.store.PutAll(ctx, c.name, entries)
}
