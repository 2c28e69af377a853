package persistence

import (
	"context"
	"errors"
	"time"

	redisclient "github.com/angelmondragon/storefront-cart/pkg/redis"
)

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	SnapshotKey(scope, storageKey string) string
}

// RedisStorage stores each snapshot as a string value with a sliding TTL.
type RedisStorage struct {
	kv  kvStore
	ttl time.Duration
}

func NewRedisStorage(kv kvStore, ttl time.Duration) (*RedisStorage, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStorage{kv: kv, ttl: ttl}, nil
}

func (r *RedisStorage) Load(ctx context.Context, scope, key string) ([]byte, error) {
	value, err := r.kv.Get(ctx, r.kv.SnapshotKey(scope, key))
	if err != nil {
		if redisclient.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (r *RedisStorage) Save(ctx context.Context, scope, key string, payload []byte) error {
	return r.kv.Set(ctx, r.kv.SnapshotKey(scope, key), payload, r.ttl)
}

func (r *RedisStorage) Delete(ctx context.Context, scope, key string) error {
	return r.kv.Del(ctx, r.kv.SnapshotKey(scope, key))
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.kv.Ping(ctx)
}
