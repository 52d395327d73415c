package offline

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps caches in process memory. Entries older than maxAge are
// dropped on read; zero maxAge keeps them until the cache is deleted.
type MemoryStore struct {
	mu     sync.Mutex
	caches map[string]*gocache.Cache
	maxAge time.Duration
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		caches: make(map[string]*gocache.Cache),
		maxAge: maxAge,
	}
}

func (s *MemoryStore) open(cache string) *gocache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[cache]
	if !ok {
		exp := gocache.NoExpiration
		if s.maxAge > 0 {
			exp = s.maxAge
		}
		// No janitor: expired items are filtered on Get.
		c = gocache.New(exp, 0)
		s.caches[cache] = c
	}
	return c
}

func (s *MemoryStore) lookup(cache string) (*gocache.Cache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[cache]
	return c, ok
}

func (s *MemoryStore) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Create(ctx context.Context, cache string) error {
	s.open(cache)
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, cache string) (bool, error) {
	_, ok := s.lookup(cache)
	return ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, cache string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[cache]
	if !ok {
		return false, nil
	}
	c.Flush()
	delete(s.caches, cache)
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, cache, key string) (Entry, bool, error) {
	c, ok := s.lookup(cache)
	if !ok {
		return Entry{}, false, nil
	}
	v, found := c.Get(key)
	if !found {
		return Entry{}, false, nil
	}
	return v.(Entry), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, cache, key string, e Entry) error {
	s.open(cache).SetDefault(key, e)
	return nil
}

func (s *MemoryStore) PutAll(ctx context.Context, cache string, entries map[string]Entry) error {
	c := s.open(cache)
	for key, e := range entries {
		c.SetDefault(key, e)
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
