package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "paddock:offline:"

// RedisStore keeps caches in Redis: a set of cache names plus one hash per
// cache mapping request keys to JSON-encoded entries.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily to addr. prefix defaults to "paddock:offline:".
func NewRedisStore(addr string, db int, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

func (s *RedisStore) namesKey() string {
	return s.prefix + "caches"
}

func (s *RedisStore) hashKey(cache string) string {
	return s.prefix + "cache:" + cache
}

func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list caches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) Create(ctx context.Context, cache string) error {
	if err := s.client.SAdd(ctx, s.namesKey(), cache).Err(); err != nil {
		return fmt.Errorf("redis create cache %s: %w", cache, err)
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, cache string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.namesKey(), cache).Result()
	if err != nil {
		return false, fmt.Errorf("redis has cache %s: %w", cache, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, cache string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.namesKey(), cache)
		pipe.Del(ctx, s.hashKey(cache))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete cache %s: %w", cache, err)
	}
	return removed.Val() > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, cache, key string) (Entry, bool, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(cache), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Put(ctx context.Context, cache, key string, e Entry) error {
	return s.PutAll(ctx, cache, map[string]Entry{key: e})
}

// PutAll writes the cache name and every entry in one MULTI/EXEC transaction.
func (s *RedisStore) PutAll(ctx context.Context, cache string, entries map[string]Entry) error {
	fields := make(map[string]interface{}, len(entries))
	for key, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis encode %s: %w", key, err)
		}
		fields[key] = raw
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.namesKey(), cache)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.hashKey(cache), fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", cache, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
