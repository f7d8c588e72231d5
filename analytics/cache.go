package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache stores query results by key.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, r *Result, ttl time.Duration) error
}

// Cached wraps q so that identical queries within ttl share one result.
// Cache failures fall through to q.
func Cached(q Querier, cache ResultCache, ttl time.Duration) Querier {
	return &cachedQuerier{next: q, cache: cache, ttl: ttl}
}

type cachedQuerier struct {
	next  Querier
	cache ResultCache
	ttl   time.Duration
}

func (c *cachedQuerier) Query(ctx context.Context, q Query) (*Result, error) {
	key := q.Key()
	if r, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return r, nil
	}
	r, err := c.next.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, key, r, c.ttl)
	return r, nil
}

// MemoryCache is an in-process ResultCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	result  *Result
	expires time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns the cached result for key if it has not expired.
func (m *MemoryCache) Get(_ context.Context, key string) (*Result, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires == e.expires {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.result, true, nil
}

// Set stores r under key for ttl.
func (m *MemoryCache) Set(_ context.Context, key string, r *Result, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{result: r, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Invalidate drops every cached result.
func (m *MemoryCache) Invalidate() {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
}

// RedisCache shares results between dashboard instances through Redis.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache stores entries under prefix + query key.
func NewRedisCache(rdb redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// NewRedisCacheFromURL connects using a redis:// URL.
func NewRedisCacheFromURL(rawURL, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), prefix), nil
}

// Get loads and decodes the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &r, true, nil
}

// Set encodes r and stores it with ttl.
func (c *RedisCache) Set(ctx context.Context, key string, r *Result, ttl time.Duration) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
