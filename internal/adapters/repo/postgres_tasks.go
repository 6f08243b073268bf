package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

var _ domain.TaskRepo = (*Postgres)(nil)

const taskColumns = `id, title, deadline, priority, status, reminder, source_text, source, autonomous, created_at, completed_at`

// CreateTask сохраняет задачу. Пустые ID, статус и CreatedAt заполняются.
func (p *Postgres) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	task = prepareTask(task, p.now)
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)
`, task.ID, task.Title, task.Deadline, string(task.Priority), string(task.Status), task.Reminder,
		task.SourceText, task.Source, task.Autonomous, task.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "tasks_insert", "tasks", start, err)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask возвращает задачу по ID.
func (p *Postgres) GetTask(ctx context.Context, id string) (domain.Task, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "tasks_get", "tasks", start, err)
	if err != nil {
		return domain.Task{}, fmt.Errorf("query task: %w", err)
	}
	task, err := pgx.CollectOneRow(rows, scanPostgresTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}

// ListTasks возвращает последние задачи, новые первыми.
func (p *Postgres) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+taskColumns+` FROM tasks
ORDER BY created_at DESC, id
LIMIT $1`, limit)
	metrics.ObserveNetworkRequest("postgres", "tasks_list", "tasks", start, err)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, scanPostgresTask)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// CountTasks считает задачи по статусам.
func (p *Postgres) CountTasks(ctx context.Context) (domain.TaskCounts, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	metrics.ObserveNetworkRequest("postgres", "tasks_count", "tasks", start, err)
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

// CompleteTask отмечает задачу выполненной.
func (p *Postgres) CompleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE tasks SET status = $2, completed_at = $3
WHERE id = $1 AND status <> $2`, id, string(domain.TaskCompleted), at.UTC())
	metrics.ObserveNetworkRequest("postgres", "tasks_complete", "tasks", start, err)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := p.GetTask(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func scanPostgresTask(row pgx.CollectableRow) (domain.Task, error) {
	var (
		t                domain.Task
		priority, status string
		completed        *time.Time
	)
	err := row.Scan(&t.ID, &t.Title, &t.Deadline, &priority, &status, &t.Reminder,
		&t.SourceText, &t.Source, &t.Autonomous, &t.CreatedAt, &completed)
	if err != nil {
		return domain.Task{}, err
	}
	t.Priority = domain.PriorityLevel(priority)
	t.Status = domain.TaskStatus(status)
	if completed != nil {
		t.CompletedAt = *completed
	}
	return t, nil
}

func prepareTask(task domain.Task, now func() time.Time) domain.Task {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now().UTC()
	}
	if task.Status == "" {
		task.Status = domain.TaskPending
	}
	return task
}

func addTaskCount(c *domain.TaskCounts, status domain.TaskStatus, n int) {
	c.Total += n
	switch status {
	case domain.TaskCompleted:
		c.Completed += n
	default:
		c.Pending += n
	}
}
