package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

// SQLite реализует те же репозитории поверх встроенной базы.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ domain.CalendarRepo       = (*SQLite)(nil)
	_ domain.AuditRepo          = (*SQLite)(nil)
	_ domain.MessageRepo        = (*SQLite)(nil)
	_ domain.BusinessMetricRepo = (*SQLite)(nil)
)

// NewSQLite создаёт адаптер встроенной БД.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Migrate создаёт таблицы, если их ещё нет.
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateEvent сохраняет событие календаря.
func (s *SQLite) CreateEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	ev = prepareEvent(ev, s.now)
	attendees, err := json.Marshal(ev.Attendees)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("marshal attendees: %w", err)
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO calendar_events (id, title, event_date, start_minute, duration_minutes, attendees, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, ev.ID, ev.Title, ev.Date.Format(domain.DateLayout), ev.Time.Minutes(), ev.DurationMinutes,
		string(attendees), string(ev.Status), formatTime(ev.CreatedAt))
	metrics.ObserveNetworkRequest("sqlite", "events_insert", "calendar_events", start, err)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// ListEvents возвращает все события по дате и времени начала.
func (s *SQLite) ListEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+` FROM calendar_events
ORDER BY event_date, start_minute, created_at`)
}

// ListEventsByDate возвращает события указанного дня.
func (s *SQLite) ListEventsByDate(ctx context.Context, date time.Time) ([]domain.CalendarEvent, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+` FROM calendar_events
WHERE event_date = ?
ORDER BY start_minute, created_at`, date.Format(domain.DateLayout))
}

// ListScheduledUntil возвращает запланированные события с датой не позже указанной.
func (s *SQLite) ListScheduledUntil(ctx context.Context, date time.Time) ([]domain.CalendarEvent, error) {
	return s.queryEvents(ctx, `
SELECT `+eventColumns+` FROM calendar_events
WHERE status = ? AND event_date <= ?
ORDER BY event_date, start_minute`, string(domain.EventScheduled), date.Format(domain.DateLayout))
}

func (s *SQLite) queryEvents(ctx context.Context, query string, args ...any) ([]domain.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.CalendarEvent, 0)
	for rows.Next() {
		var (
			ev                       domain.CalendarEvent
			date, attendees, created string
			minute                   int
			status                   string
		)
		if err := rows.Scan(&ev.ID, &ev.Title, &date, &minute, &ev.DurationMinutes, &attendees, &status, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
			return nil, fmt.Errorf("event %s attendees: %w", ev.ID, err)
		}
		if ev.Attendees == nil {
			ev.Attendees = []string{}
		}
		ev.Time = domain.TimeSlot(minute)
		ev.Status = domain.EventStatus(status)
		ev.CreatedAt = parseTime(created)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpdateEventStatus меняет статус события.
func (s *SQLite) UpdateEventStatus(ctx context.Context, id string, status domain.EventStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE calendar_events SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// AppendAudit добавляет запись журнала.
func (s *SQLite) AppendAudit(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO audit_log (ts, agent, action, details) VALUES (?, ?, ?, ?)
`, formatTime(entry.Timestamp), entry.Agent, entry.Action, entry.Details)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("insert audit: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

// ListAudit возвращает последние записи, новые первыми.
func (s *SQLite) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, agent, action, details FROM audit_log
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e  domain.AuditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Agent, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Timestamp = parseTime(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearAudit удаляет все записи журнала.
func (s *SQLite) ClearAudit(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_log`)
	return err
}

// SaveMessage сохраняет сообщение Slack-интеграции.
func (s *SQLite) SaveMessage(ctx context.Context, msg domain.SlackMessage) (domain.SlackMessage, error) {
	msg = prepareMessage(msg, s.now)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO slack_messages (id, channel, message, action, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, msg.ID, msg.Channel, msg.Message, msg.Action, string(msg.Status), formatTime(msg.CreatedAt))
	if err != nil {
		return domain.SlackMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListMessages возвращает последние сообщения, новые первыми.
func (s *SQLite) ListMessages(ctx context.Context, limit int) ([]domain.SlackMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, channel, message, action, status, created_at FROM slack_messages
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.SlackMessage, 0)
	for rows.Next() {
		var (
			m               domain.SlackMessage
			status, created string
		)
		if err := rows.Scan(&m.ID, &m.Channel, &m.Message, &m.Action, &status, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = domain.MessageStatus(status)
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordBusinessMetric сохраняет бизнесовую метрику.
func (s *SQLite) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = s.now().UTC()
	}
	var payload sql.NullString
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = sql.NullString{String: string(data), Valid: true}
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO business_metrics (event, metadata, occurred_at) VALUES (?, ?, ?)
`, metric.Event, payload, formatTime(metric.OccurredAt))
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
