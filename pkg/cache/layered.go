package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache keeps hot analysis results in process memory in front of the
// shared Redis copy. Locks bypass memory.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(r *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis: r,
		l1TTL: cfg.MemoryTTL,
	}
}

// l1 never lets a memory entry outlive its Redis expiration.
func (lc *LayeredCache) l1(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}

// Set writes Redis first. The memory copy is kept even when Redis fails, so
// this process still benefits from the result.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	rerr := lc.redis.Set(ctx, key, data, expiration)
	_ = lc.mem.Set(ctx, key, data, lc.l1(expiration))
	return rerr
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	if err := lc.mem.Get(ctx, key, &raw); err == nil {
		return decode(raw, dest)
	}
	if err := lc.redis.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, raw, lc.l1TTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.redis.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.redis.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	return errors.Join(lc.mem.Close(), lc.redis.Close())
}
