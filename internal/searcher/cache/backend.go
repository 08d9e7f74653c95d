package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/redis"
)

const defaultMemorySize = 1024

// MemoryBackend is an in-process LRU with per-entry expiry.
type MemoryBackend struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryBackend holds at most size entries for ttl each. A zero ttl keeps
// entries until they are evicted.
func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &MemoryBackend{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

func (m *MemoryBackend) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *MemoryBackend) Len() int {
	return m.lru.Len()
}

// RedisBackend keeps cached results in Redis. Keys are scoped to one index
// version, so replicas with their own indexes never read each other's entries.
type RedisBackend struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *pkgredis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.client.Get(ctx, key)
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl)
}

func (r *RedisBackend) Purge(ctx context.Context) error {
	_, err := r.client.DeletePrefix(ctx, keyPrefix)
	return err
}
