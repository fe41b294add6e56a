package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache abstracts the prediction cache so the backend can be swapped in tests
// and configuration.
type Cache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a cached value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

type lruEntry struct {
	value     string
	expiresAt time.Time
}

// LRUCache keeps recent predictions in process memory.
type LRUCache struct {
	entries *lru.Cache[string, lruEntry]
	now     func() time.Time
}

// NewLRUCache builds an in-process cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	entries, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries, now: time.Now}, nil
}

// Set stores value until expiration elapses. A non-positive expiration keeps
// the entry until it is evicted.
func (c *LRUCache) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	entry := lruEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}
	c.entries.Add(key, entry)
	return nil
}

// Get returns the stored value unless it has expired.
func (c *LRUCache) Get(_ context.Context, key string) (string, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return "", ErrCacheMiss
	}
	return entry.value, nil
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (NoopCache) Get(context.Context, string) (string, error) { return "", ErrCacheMiss }
