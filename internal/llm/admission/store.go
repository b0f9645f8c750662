package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a Store holding no snapshot.
var ErrNotFound = errors.New("premium cache not found in store")

// storeTTLFactor keeps persisted snapshots around well past their freshness
// so a restarted process can still serve them while the docs are down.
const storeTTLFactor = 7

// Store persists premium cache snapshots between processes.
type Store interface {
	Load(ctx context.Context) (PremiumModelCache, error)
	Save(ctx context.Context, c PremiumModelCache) error
}

// RedisStore keeps the snapshot as a JSON document under one key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (PremiumModelCache, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return PremiumModelCache{}, ErrNotFound
	}
	if err != nil {
		return PremiumModelCache{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var c PremiumModelCache
	if err := json.Unmarshal(raw, &c); err != nil {
		return PremiumModelCache{}, fmt.Errorf("decode premium cache: %w", err)
	}
	return c, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, c PremiumModelCache) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode premium cache: %w", err)
	}

	var ttl time.Duration
	if c.TTL > 0 {
		ttl = c.TTL * storeTTLFactor
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	cache *PremiumModelCache
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load implements Store.
func (s *MemoryStore) Load(context.Context) (PremiumModelCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		return PremiumModelCache{}, ErrNotFound
	}
	return s.cache.clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, c PremiumModelCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c = c.clone()
	s.cache = &c
	return nil
}
