package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ domain.CalendarRepo       = (*Postgres)(nil)
	_ domain.AuditRepo          = (*Postgres)(nil)
	_ domain.MessageRepo        = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Migrate создаёт таблицы, если их ещё нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	for _, stmt := range postgresSchema {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "migrate", "schema", start, err)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateEvent сохраняет событие календаря. Пустые ID и CreatedAt заполняются.
func (p *Postgres) CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	ev = prepareEvent(ev, p.now)
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO calendar_events (id, title, event_date, start_minute, duration_minutes, attendees, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, ev.ID, ev.Title, ev.Date, ev.Time.Minutes(), ev.DurationMinutes, ev.Attendees, string(ev.Status), ev.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "events_insert", "calendar_events", start, err)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

const eventColumns = `id, title, event_date, start_minute, duration_minutes, attendees, status, created_at`

// ListEvents возвращает все события по дате и времени начала.
func (p *Postgres) ListEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	return p.queryEvents(ctx, "events_list", `
SELECT `+eventColumns+` FROM calendar_events
ORDER BY event_date, start_minute, created_at`)
}

// ListEventsByDate возвращает события указанного дня.
func (p *Postgres) ListEventsByDate(ctx context.Context, date time.Time) ([]domain.CalendarEvent, error) {
	return p.queryEvents(ctx, "events_by_date", `
SELECT `+eventColumns+` FROM calendar_events
WHERE event_date = $1
ORDER BY start_minute, created_at`, domain.DateOf(date))
}

// ListScheduledUntil возвращает запланированные события с датой не позже указанной.
func (p *Postgres) ListScheduledUntil(ctx context.Context, date time.Time) ([]domain.CalendarEvent, error) {
	return p.queryEvents(ctx, "events_scheduled_until", `
SELECT `+eventColumns+` FROM calendar_events
WHERE status = $1 AND event_date <= $2
ORDER BY event_date, start_minute`, string(domain.EventScheduled), domain.DateOf(date))
}

func (p *Postgres) queryEvents(ctx context.Context, op, query string, args ...any) ([]domain.CalendarEvent, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "calendar_events", start, err)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.CalendarEvent, 0)
	for rows.Next() {
		var (
			ev     domain.CalendarEvent
			minute int
			status string
		)
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Date, &minute, &ev.DurationMinutes, &ev.Attendees, &status, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Date = domain.DateOf(ev.Date)
		ev.Time = domain.TimeSlot(minute)
		ev.Status = domain.EventStatus(status)
		if ev.Attendees == nil {
			ev.Attendees = []string{}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpdateEventStatus меняет статус события.
func (p *Postgres) UpdateEventStatus(ctx context.Context, id string, status domain.EventStatus) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE calendar_events SET status = $2 WHERE id = $1`, id, string(status))
	metrics.ObserveNetworkRequest("postgres", "events_update_status", "calendar_events", start, err)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// AppendAudit добавляет запись журнала и возвращает её с присвоенным ID.
func (p *Postgres) AppendAudit(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = p.now().UTC()
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO audit_log (ts, agent, action, details)
VALUES ($1, $2, $3, $4)
RETURNING id
`, entry.Timestamp, entry.Agent, entry.Action, entry.Details).Scan(&entry.ID)
	metrics.ObserveNetworkRequest("postgres", "audit_insert", "audit_log", start, err)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("insert audit: %w", err)
	}
	return entry, nil
}

// ListAudit возвращает последние записи, новые первыми.
func (p *Postgres) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, ts, agent, action, details FROM audit_log
ORDER BY id DESC
LIMIT $1`, limit)
	metrics.ObserveNetworkRequest("postgres", "audit_list", "audit_log", start, err)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		var e domain.AuditEntry
		err := row.Scan(&e.ID, &e.Timestamp, &e.Agent, &e.Action, &e.Details)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit: %w", err)
	}
	return entries, nil
}

// ClearAudit удаляет все записи журнала.
func (p *Postgres) ClearAudit(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM audit_log`)
	metrics.ObserveNetworkRequest("postgres", "audit_clear", "audit_log", start, err)
	return err
}

// SaveMessage сохраняет сообщение Slack-интеграции.
func (p *Postgres) SaveMessage(ctx context.Context, msg domain.SlackMessage) (domain.SlackMessage, error) {
	msg = prepareMessage(msg, p.now)
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO slack_messages (id, channel, message, action, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, msg.ID, msg.Channel, msg.Message, msg.Action, string(msg.Status), msg.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "messages_insert", "slack_messages", start, err)
	if err != nil {
		return domain.SlackMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListMessages возвращает последние сообщения, новые первыми.
func (p *Postgres) ListMessages(ctx context.Context, limit int) ([]domain.SlackMessage, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, channel, message, action, status, created_at FROM slack_messages
ORDER BY created_at DESC
LIMIT $1`, limit)
	metrics.ObserveNetworkRequest("postgres", "messages_list", "slack_messages", start, err)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.SlackMessage, 0)
	for rows.Next() {
		var (
			m      domain.SlackMessage
			status string
		)
		if err := rows.Scan(&m.ID, &m.Channel, &m.Message, &m.Action, &status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = domain.MessageStatus(status)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = p.now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, metadata, occurred_at)
VALUES ($1, $2, $3)
`, metric.Event, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

func prepareEvent(ev domain.CalendarEvent, now func() time.Time) domain.CalendarEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now().UTC()
	}
	if ev.Status == "" {
		ev.Status = domain.EventScheduled
	}
	ev.Date = domain.DateOf(ev.Date)
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	return ev
}

func prepareMessage(msg domain.SlackMessage, now func() time.Time) domain.SlackMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now().UTC()
	}
	return msg
}
