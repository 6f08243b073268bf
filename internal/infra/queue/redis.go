package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// RedisAnalysisQueue реализует очередь задач анализа на базе Redis lists.
type RedisAnalysisQueue struct {
	client *redis.Client
	key    string
}

var _ domain.AnalysisQueue = (*RedisAnalysisQueue)(nil)

// NewRedisAnalysisQueue создаёт очередь по указанному ключу.
func NewRedisAnalysisQueue(client *redis.Client, key string) *RedisAnalysisQueue {
	return &RedisAnalysisQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisAnalysisQueue) Enqueue(ctx context.Context, job domain.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisAnalysisQueue) Pop(ctx context.Context) (domain.AnalysisJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.AnalysisJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.AnalysisJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.AnalysisJob{}, err
		}
		if len(res) != 2 {
			return domain.AnalysisJob{}, errors.New("redis queue: unexpected response")
		}
		return decodeJob([]byte(res[1]))
	}
}

func decodeJob(payload []byte) (domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.AnalysisJob{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		return domain.AnalysisJob{}, errors.New("decode job: missing job_id")
	}
	return job, nil
}
