package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/usage"
)

const (
	maxTitleRunes    = 200
	defaultListLimit = 100
	maxListLimit     = 500
)

// CreateInput — данные новой задачи.
type CreateInput struct {
	Title      string
	Deadline   string
	Priority   domain.PriorityLevel
	SourceText string
	Source     string
	Autonomous bool
}

// Summary — список задач со счётчиками по статусам.
type Summary struct {
	domain.TaskCounts
	Tasks []domain.Task
}

// Service ведёт список задач.
type Service struct {
	repo   domain.TaskRepo
	usage  *usage.Service
	audit  *audit.Service
	events *events.Emitter
	log    zerolog.Logger
	now    func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithUsage подключает счётчики использования.
func WithUsage(u *usage.Service) Option { return func(s *Service) { s.usage = u } }

// WithAudit подключает журнал.
func WithAudit(a *audit.Service) Option { return func(s *Service) { s.audit = a } }

// WithEvents подключает публикацию событий решений.
func WithEvents(e *events.Emitter) Option { return func(s *Service) { s.events = e } }

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService создаёт сервис задач.
func NewService(repo domain.TaskRepo, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  logger.With().Str("component", "tasks").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create сохраняет задачу и считает её в tasks_created.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Task, error) {
	title := clip(strings.TrimSpace(in.Title), maxTitleRunes)
	if title == "" {
		return domain.Task{}, fmt.Errorf("%w: task title is required", domain.ErrInvalidInput)
	}
	deadline := strings.TrimSpace(in.Deadline)
	if deadline == "" {
		deadline = domain.NoDeadline
	}
	prio := in.Priority
	if prio == "" {
		prio = domain.PriorityMedium
	}

	task, err := s.repo.CreateTask(ctx, domain.Task{
		Title:      title,
		Deadline:   deadline,
		Priority:   prio,
		Status:     domain.TaskPending,
		Reminder:   Reminder(prio, deadline),
		SourceText: in.SourceText,
		Source:     in.Source,
		Autonomous: in.Autonomous,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.Task{}, fmt.Errorf("сохранение задачи: %w", err)
	}

	s.usage.Track(ctx, domain.CounterTasksCreated)
	s.audit.Record(ctx, domain.AgentTask, "task_created",
		fmt.Sprintf("%s (%s, deadline: %s)", task.Title, task.Priority, task.Deadline))
	s.events.Emit(ctx, domain.DecisionEventTaskCreated, task.ID, map[string]any{
		"title":      task.Title,
		"priority":   string(task.Priority),
		"deadline":   task.Deadline,
		"source":     task.Source,
		"autonomous": task.Autonomous,
	})
	s.log.Info().Str("task_id", task.ID).Str("source", task.Source).Msg("задача создана")
	return task, nil
}

// Get возвращает задачу по ID.
func (s *Service) Get(ctx context.Context, id string) (domain.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, fmt.Errorf("%w: task id is required", domain.ErrInvalidInput)
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("чтение задачи %s: %w", id, err)
	}
	return task, nil
}

// List возвращает последние задачи и счётчики по всем задачам.
func (s *Service) List(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.repo.ListTasks(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("чтение задач: %w", err)
	}
	counts, err := s.repo.CountTasks(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("подсчёт задач: %w", err)
	}
	return Summary{TaskCounts: counts, Tasks: list}, nil
}

// Complete отмечает задачу выполненной. Повторный вызов не меняет счётчики.
func (s *Service) Complete(ctx context.Context, id string) (domain.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, fmt.Errorf("%w: task id is required", domain.ErrInvalidInput)
	}
	changed, err := s.repo.CompleteTask(ctx, id, s.now().UTC())
	if err != nil {
		return domain.Task{}, fmt.Errorf("завершение задачи %s: %w", id, err)
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("чтение задачи %s: %w", id, err)
	}
	if !changed {
		return task, nil
	}

	s.usage.Track(ctx, domain.CounterTasksCompleted)
	s.audit.Record(ctx, domain.AgentTask, "task_completed", task.Title)
	s.events.Emit(ctx, domain.DecisionEventTaskCompleted, task.ID, map[string]any{
		"title":    task.Title,
		"priority": string(task.Priority),
	})
	s.log.Info().Str("task_id", task.ID).Msg("задача выполнена")
	return task, nil
}

// Reminder подбирает напоминание по приоритету и сроку.
func Reminder(prio domain.PriorityLevel, deadline string) string {
	var r string
	switch prio {
	case domain.PriorityHigh:
		r = "Follow up within 2 hours"
	case domain.PriorityLow:
		r = "Review next week"
	default:
		r = "Follow up tomorrow"
	}
	if deadline != "" && deadline != domain.NoDeadline {
		r += " (deadline: " + deadline + ")"
	}
	return r
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
