// README: Report caches: an expiring in-process LRU and a shared Redis cache.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache stores reports by point key. Expired entries are misses.
type Cache interface {
	Get(ctx context.Context, key string) (Report, bool, error)
	Set(ctx context.Context, key string, r Report) error
}

// MemoryCache is a bounded in-process cache. When full, the least recently
// used entry is evicted.
type MemoryCache struct {
	lru *expirable.LRU[string, Report]
}

func NewMemoryCache(ttl time.Duration, size int) *MemoryCache {
	if size < 1 {
		size = 1
	}
	return &MemoryCache{lru: expirable.NewLRU[string, Report](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Report, bool, error) {
	r, ok := c.lru.Get(key)
	return r, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r Report) error {
	c.lru.Add(key, r)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

const redisKeyPrefix = "locater:weather:"

// RedisCache shares reports across instances; Redis expires them.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Report, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, err
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return Report{}, false, err
	}
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err()
}
