// README: Preferences persistence: Redis hash or in-memory map.
package preferences

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisKey = "locater:preferences"

// Store persists raw preference fields. Missing fields read as empty.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, fields map[string]string) error
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, redisKey).Result()
}

func (s *RedisStore) Save(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return s.rdb.HSet(ctx, redisKey, values).Err()
}

// MemoryStore is used when no Redis is configured.
type MemoryStore struct {
	mu     sync.Mutex
	fields map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fields: make(map[string]string)}
}

func (s *MemoryStore) Load(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range fields {
		s.fields[k] = v
	}
	return nil
}
