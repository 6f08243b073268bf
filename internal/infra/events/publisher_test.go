package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
)

type stubMetricRepo struct {
	saved []domain.BusinessMetric
	err   error
}

func (s *stubMetricRepo) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, m)
	return nil
}

type recorder struct {
	events []domain.DecisionEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev domain.DecisionEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestStorePublisherAddsKey(t *testing.T) {
	repo := &stubMetricRepo{}
	p := NewStorePublisher(repo)
	err := p.Publish(context.Background(), domain.DecisionEvent{
		Type:    domain.DecisionEventPriorityScored,
		Key:     "abc",
		Payload: map[string]any{"score": 80},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("ожидали одну запись")
	}
	m := repo.saved[0]
	if m.Event != domain.DecisionEventPriorityScored || m.Metadata["key"] != "abc" || m.Metadata["score"] != 80 {
		t.Fatalf("неожиданная метрика: %+v", m)
	}
}

func TestFanoutCallsAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recorder{err: boom}
	b := &recorder{}
	err := Fanout{a, nil, b}.Publish(context.Background(), domain.DecisionEvent{Type: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидали boom, получили %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("оба публикатора должны получить событие")
	}
}

func TestEmitterSwallowsErrors(t *testing.T) {
	r := &recorder{err: errors.New("down")}
	e := NewEmitter(r, zerolog.Nop())
	e.Emit(context.Background(), domain.DecisionEventEventCreated, "ev-1", map[string]any{"title": "Sync"})
	if len(r.events) != 1 || r.events[0].Key != "ev-1" || r.events[0].OccurredAt.IsZero() {
		t.Fatalf("неожиданное событие: %+v", r.events)
	}

	var nilEmitter *Emitter
	nilEmitter.Emit(context.Background(), "x", "y", nil)
	NewEmitter(nil, zerolog.Nop()).Emit(context.Background(), "x", "y", nil)
}
