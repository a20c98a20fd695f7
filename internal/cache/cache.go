package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented cache with per-entry TTL. Report payloads
// from the backends cache here so repeated tool calls within a window
// do not hammer cf-butler or cf-hoover.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// NewFromEnv returns a Redis-backed cache when REDIS_URL is set and
// reachable, otherwise an in-memory one.
func NewFromEnv() (Cache, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return NewMemoryCache(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

type memoryEntry struct {
	value      []byte
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryEntry)}
}

// Get retrieves a value if it exists and has not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[key]
	if !exists || time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = memoryEntry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
}

// Delete removes a key.
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// RedisCache backs the cache with Redis so multiple instances share
// entries.
type RedisCache struct {
	client *redis.Client
}

// Get retrieves a value; a miss or a Redis error both report absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a value with the given TTL. Failures are silent; the
// cache is best effort.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.client.Set(ctx, key, value, ttl)
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}
