package experiments

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/vibechecc/backend/internal/cache"
)

// RedisPersistence mirrors the assignment blob into Redis so every server
// instance rehydrates the same map. Single key, single blob; concurrent
// instances are last-writer-wins.
type RedisPersistence struct {
	client *cache.RedisClient
	key    string
}

// NewRedisPersistence stores the blob under assignmentsKey unless a key
// override is given.
func NewRedisPersistence(client *cache.RedisClient, key string) *RedisPersistence {
	if key == "" {
		key = assignmentsKey
	}
	return &RedisPersistence{client: client, key: key}
}

func (r *RedisPersistence) Load(ctx context.Context) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotPersisted
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (r *RedisPersistence) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data)
}

func (r *RedisPersistence) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key)
}
