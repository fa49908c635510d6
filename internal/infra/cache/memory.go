package cache

import (
	"context"
	"time"

	"storefront/internal/cache"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// プロセス内のLRU。Redisが無い開発環境とテスト用
type MemoryBackend struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

func NewMemoryBackend(size int) (*MemoryBackend, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryBackend{lru: c, now: time.Now}, nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	// 期限切れは読んだときに消す
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, cache.ErrMiss
	}
	return e.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.lru.Add(key, entry{value: buf, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}
