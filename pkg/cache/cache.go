package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface. Values are stored JSON-encoded
// so every backend returns the same shapes.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock takes key for ttl if nobody holds it. A lock is released by
	// Unlock from the same Service or by expiry.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}

// Remember returns the cached value under key, computing and storing it on a
// miss. The bool reports a cache hit. Backend errors other than a miss fall
// through to compute so a broken cache never blocks the caller.
func Remember[T any](ctx context.Context, c Service, key string, ttl time.Duration, compute func() (T, error)) (T, bool, error) {
	var out T
	if c != nil {
		if err := c.Get(ctx, key, &out); err == nil {
			return out, true, nil
		}
	}
	out, err := compute()
	if err != nil {
		return out, false, err
	}
	if c != nil {
		_ = c.Set(ctx, key, out, ttl)
	}
	return out, false, nil
}
