package domain

import (
	"context"
	"time"
)

// Имена счётчиков использования для панели метрик.
const (
	CounterEmailsProcessed     = "emails_processed"
	CounterTasksCreated        = "tasks_created"
	CounterTasksCompleted      = "tasks_completed"
	CounterMeetingsScheduled   = "meetings_scheduled"
	CounterSlackMessages       = "slack_messages"
	CounterAutonomousApprovals = "autonomous_approvals"
	CounterHumanApprovals      = "human_approvals"
)

// UsageCounterNames перечисляет все известные счётчики в порядке отображения.
var UsageCounterNames = []string{
	CounterEmailsProcessed,
	CounterTasksCreated,
	CounterTasksCompleted,
	CounterMeetingsScheduled,
	CounterSlackMessages,
	CounterAutonomousApprovals,
	CounterHumanApprovals,
}

// DecisionEvent описывает решение, которое публикуется во внешний поток событий.
type DecisionEvent struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

const (
	// DecisionEventPriorityScored фиксирует расчёт приоритета письма.
	DecisionEventPriorityScored = "priority.scored"
	// DecisionEventConflictDetected фиксирует найденный конфликт в календаре.
	DecisionEventConflictDetected = "conflict.detected"
	// DecisionEventEventCreated фиксирует создание встречи.
	DecisionEventEventCreated = "event.created"
	// DecisionEventTaskCreated фиксирует создание задачи.
	DecisionEventTaskCreated = "task.created"
	// DecisionEventTaskCompleted фиксирует выполнение задачи.
	DecisionEventTaskCompleted = "task.completed"
)

// EventPublisher публикует события решений.
type EventPublisher interface {
	Publish(ctx context.Context, event DecisionEvent) error
}

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
