package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores documents as plain redis strings under a key prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. Keys are stored as prefix+key.
func NewRedis(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Get(key string) (string, bool, error) {
	v, err := b.client.Get(context.Background(), b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *RedisBackend) Set(key, value string) error {
	return b.client.Set(context.Background(), b.key(key), value, 0).Err()
}

func (b *RedisBackend) Delete(key string) error {
	return b.client.Del(context.Background(), b.key(key)).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) key(k string) string {
	return b.prefix + k
}
