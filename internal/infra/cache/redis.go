package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш. Все ключи получают общий префикс.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Once выполняет функцию, если ключ ещё не задан. При ошибке ключ снимается.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	key = c.prefix + key
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "cache", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.prefix+key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "cache", start, err)
	return err
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "cache", start, nil)
		return nil, domain.ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("redis", "get", "cache", start, err)
	return data, err
}
