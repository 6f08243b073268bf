package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

const defaultPollInterval = time.Second

// RabbitAnalysisQueue реализует очередь задач анализа через AMQP.
type RabbitAnalysisQueue struct {
	mu           sync.Mutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	queue        string
	pollInterval time.Duration
}

var _ domain.AnalysisQueue = (*RabbitAnalysisQueue)(nil)

// NewRabbitAnalysisQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitAnalysisQueue(amqpURL, queue string) (*RabbitAnalysisQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitAnalysisQueue{
		conn:         conn,
		channel:      ch,
		queue:        queue,
		pollInterval: defaultPollInterval,
	}, nil
}

// Enqueue публикует задачу в очередь через exchange по умолчанию.
func (q *RabbitAnalysisQueue) Enqueue(ctx context.Context, job domain.AnalysisJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop опрашивает очередь, пока не появится задача или не отменится контекст.
func (q *RabbitAnalysisQueue) Pop(ctx context.Context) (domain.AnalysisJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.AnalysisJob{}, err
		}
		msg, ok, err := q.get()
		if err != nil {
			return domain.AnalysisJob{}, err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return domain.AnalysisJob{}, ctx.Err()
			case <-time.After(q.pollInterval):
			}
			continue
		}
		job, err := decodeJob(msg.Body)
		if err != nil {
			_ = msg.Nack(false, false)
			return domain.AnalysisJob{}, err
		}
		if err := msg.Ack(false); err != nil {
			return domain.AnalysisJob{}, fmt.Errorf("ack job: %w", err)
		}
		return job, nil
	}
}

func (q *RabbitAnalysisQueue) get() (amqp.Delivery, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	msg, ok, err := q.channel.Get(q.queue, false)
	metrics.ObserveNetworkRequest("rabbitmq", "get", q.queue, start, err)
	if err != nil {
		return amqp.Delivery{}, false, fmt.Errorf("get job: %w", err)
	}
	return msg, ok, nil
}

// Close закрывает канал и соединение.
func (q *RabbitAnalysisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel != nil {
		_ = q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
