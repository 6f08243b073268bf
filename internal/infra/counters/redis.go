package counters

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"flowpilot/internal/infra/metrics"
)

// DefaultKey — ключ хэша со счётчиками использования.
const DefaultKey = "flowpilot:usage"

// Redis хранит счётчики в хэше Redis, чтобы их видели все экземпляры API и воркер.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis создаёт хранилище счётчиков.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// Incr увеличивает счётчик атомарно.
func (r *Redis) Incr(ctx context.Context, name string, delta int64) error {
	start := time.Now()
	err := r.client.HIncrBy(ctx, r.key, name, delta).Err()
	metrics.ObserveNetworkRequest("redis", "hincrby", r.key, start, err)
	return err
}

// Snapshot читает все счётчики.
func (r *Redis) Snapshot(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	metrics.ObserveNetworkRequest("redis", "hgetall", r.key, start, err)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for name, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}

// Reset удаляет хэш со счётчиками.
func (r *Redis) Reset(ctx context.Context) error {
	start := time.Now()
	err := r.client.Del(ctx, r.key).Err()
	metrics.ObserveNetworkRequest("redis", "del", r.key, start, err)
	return err
}
