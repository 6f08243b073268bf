package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

var _ domain.TaskRepo = (*SQLite)(nil)

// CreateTask сохраняет задачу.
func (s *SQLite) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	task = prepareTask(task, s.now)
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
`, task.ID, task.Title, task.Deadline, string(task.Priority), string(task.Status), task.Reminder,
		task.SourceText, task.Source, boolToInt(task.Autonomous), formatTime(task.CreatedAt))
	metrics.ObserveNetworkRequest("sqlite", "tasks_insert", "tasks", start, err)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask возвращает задачу по ID.
func (s *SQLite) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}

// ListTasks возвращает последние задачи, новые первыми.
func (s *SQLite) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+taskColumns+` FROM tasks
ORDER BY rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CountTasks считает задачи по статусам.
func (s *SQLite) CountTasks(ctx context.Context) (domain.TaskCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return domain.TaskCounts{}, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	var counts domain.TaskCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.TaskCounts{}, fmt.Errorf("scan counts: %w", err)
		}
		addTaskCount(&counts, domain.TaskStatus(status), n)
	}
	return counts, rows.Err()
}

// CompleteTask отмечает задачу выполненной. false — задача уже была выполнена.
func (s *SQLite) CompleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, completed_at = ?
WHERE id = ? AND status <> ?`, string(domain.TaskCompleted), formatTime(at), id, string(domain.TaskCompleted))
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetTask(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (domain.Task, error) {
	var (
		t                         domain.Task
		priority, status, created string
		autonomous                int
		completed                 sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &t.Deadline, &priority, &status, &t.Reminder,
		&t.SourceText, &t.Source, &autonomous, &created, &completed)
	if err != nil {
		return domain.Task{}, err
	}
	t.Priority = domain.PriorityLevel(priority)
	t.Status = domain.TaskStatus(status)
	t.Autonomous = autonomous != 0
	t.CreatedAt = parseTime(created)
	if completed.Valid {
		t.CompletedAt = parseTime(completed.String)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
