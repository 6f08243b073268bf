package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// KafkaPublisher отправляет события решений в топик Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

var _ domain.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher создаёт писателя для указанных брокеров и топика.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are empty")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}, nil
}

// Publish сериализует событие в JSON и пишет его с ключом события.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.DecisionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	metrics.ObserveNetworkRequest("kafka", "write", p.topic, start, err)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close закрывает писателя.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
