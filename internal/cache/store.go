package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrMiss はキーが無いことを表す。Backendはこれを返す
var ErrMiss = errors.New("cache miss")

// DefaultTTL は ttl 未指定時の有効期限
const DefaultTTL = 5 * time.Minute

// Backend はキャッシュ本体（Redis / プロセス内LRU）
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store はcache-asideの窓口。
// Backendの失敗は全部ここで吸収する（Getはミス扱い、Set/Deleteは何もしない）。
type Store struct {
	backend    Backend
	logger     *zap.Logger
	defaultTTL time.Duration
}

func NewStore(backend Backend, logger *zap.Logger, defaultTTL time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Store{
		backend:    backend,
		logger:     logger,
		defaultTTL: defaultTTL,
	}
}

func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Get はkeyの値をTに復元して返す。無い・壊れている・通信失敗はすべて (zero, false)
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T

	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		s.logger.Info("cache miss", zap.String("key", key))
		return zero, false
	}
	if err != nil {
		s.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Error("cache decode failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}

	s.logger.Info("cache hit", zap.String("key", key))
	return v, true
}

// Set はvalueをJSONにして保存する。ttl<=0 ならデフォルト
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Info("cache set", zap.String("key", key), zap.Duration("ttl", ttl))
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Error("cache delete failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Info("cache remove", zap.String("key", key))
}
