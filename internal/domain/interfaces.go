package domain

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound возвращается, если событие календаря не найдено.
var ErrEventNotFound = errors.New("calendar event not found")

// CalendarRepo хранит события календаря.
type CalendarRepo interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (CalendarEvent, error)
	ListEvents(ctx context.Context) ([]CalendarEvent, error)
	ListEventsByDate(ctx context.Context, date time.Time) ([]CalendarEvent, error)
	// ListScheduledUntil возвращает запланированные события с датой не позже указанной.
	ListScheduledUntil(ctx context.Context, date time.Time) ([]CalendarEvent, error)
	UpdateEventStatus(ctx context.Context, id string, status EventStatus) error
}

// ErrTaskNotFound возвращается, если задача не найдена.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepo хранит задачи.
type TaskRepo interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	// ListTasks возвращает задачи, новые первыми.
	ListTasks(ctx context.Context, limit int) ([]Task, error)
	CountTasks(ctx context.Context) (TaskCounts, error)
	// CompleteTask отмечает задачу выполненной. false означает, что она уже была выполнена.
	CompleteTask(ctx context.Context, id string, at time.Time) (bool, error)
}

// AuditRepo хранит журнал действий агентов.
type AuditRepo interface {
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	ClearAudit(ctx context.Context) error
}

// MessageRepo хранит историю сообщений Slack-интеграции.
type MessageRepo interface {
	SaveMessage(ctx context.Context, msg SlackMessage) (SlackMessage, error)
	ListMessages(ctx context.Context, limit int) ([]SlackMessage, error)
}

// UsageCounters — внешнее хранилище счётчиков использования.
type UsageCounters interface {
	Incr(ctx context.Context, name string, delta int64) error
	Snapshot(ctx context.Context) (map[string]int64, error)
	Reset(ctx context.Context) error
}

// Notifier доставляет текстовые уведомления во внешний мессенджер.
type Notifier interface {
	Notify(ctx context.Context, channel, text string) error
}

// DraftRequest содержит данные для составления ответа на письмо.
type DraftRequest struct {
	EmailText string
	Task      string
	Deadline  string
	Priority  PriorityLevel
}

// Drafter составляет черновик ответа на письмо.
type Drafter interface {
	Draft(ctx context.Context, req DraftRequest) (string, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrCacheMiss возвращается Cache.Get при отсутствии ключа.
var ErrCacheMiss = errors.New("cache miss")
