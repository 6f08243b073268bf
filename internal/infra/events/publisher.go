package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
)

// LogPublisher пишет события в лог. Используется, когда Kafka не настроена.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher создаёт публикатор в лог.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.With().Str("component", "events").Logger()}
}

// Publish логирует событие.
func (p *LogPublisher) Publish(_ context.Context, event domain.DecisionEvent) error {
	p.log.Debug().
		Str("type", event.Type).
		Str("key", event.Key).
		Interface("payload", event.Payload).
		Msg("событие решения")
	return nil
}

// StorePublisher сохраняет события как бизнес-метрики в репозитории.
type StorePublisher struct {
	repo domain.BusinessMetricRepo
}

// NewStorePublisher создаёт публикатор в хранилище.
func NewStorePublisher(repo domain.BusinessMetricRepo) *StorePublisher {
	return &StorePublisher{repo: repo}
}

// Publish сохраняет событие.
func (p *StorePublisher) Publish(ctx context.Context, event domain.DecisionEvent) error {
	meta := make(map[string]any, len(event.Payload)+1)
	for k, v := range event.Payload {
		meta[k] = v
	}
	if event.Key != "" {
		meta["key"] = event.Key
	}
	return p.repo.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:      event.Type,
		Metadata:   meta,
		OccurredAt: event.OccurredAt,
	})
}

// Fanout рассылает событие всем публикаторам и объединяет ошибки.
type Fanout []domain.EventPublisher

// Publish вызывает каждый публикатор, даже если предыдущий вернул ошибку.
func (f Fanout) Publish(ctx context.Context, event domain.DecisionEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emitter публикует события от имени сервисов. Ошибки только логируются.
type Emitter struct {
	pub domain.EventPublisher
	log zerolog.Logger
	now func() time.Time
}

// NewEmitter создаёт Emitter. Nil-публикатор превращает Emit в no-op.
func NewEmitter(pub domain.EventPublisher, logger zerolog.Logger) *Emitter {
	return &Emitter{pub: pub, log: logger.With().Str("component", "events").Logger(), now: time.Now}
}

// Emit публикует событие указанного типа.
func (e *Emitter) Emit(ctx context.Context, eventType, key string, payload map[string]any) {
	if e == nil || e.pub == nil {
		return
	}
	ev := domain.DecisionEvent{
		Type:       eventType,
		Key:        key,
		OccurredAt: e.now().UTC(),
		Payload:    payload,
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("type", eventType).Msg("не удалось опубликовать событие")
	}
}
