package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/counters"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/usecase/usage"
)

type memRepo struct {
	mu    sync.Mutex
	tasks []domain.Task
	seq   int
}

func (r *memRepo) CreateTask(_ context.Context, task domain.Task) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	task.ID = fmt.Sprintf("task-%d", r.seq)
	r.tasks = append(r.tasks, task)
	return task, nil
}

func (r *memRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, domain.ErrTaskNotFound
}

func (r *memRepo) ListTasks(_ context.Context, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Task, 0, len(r.tasks))
	for i := len(r.tasks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.tasks[i])
	}
	return out, nil
}

func (r *memRepo) CountTasks(context.Context) (domain.TaskCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c domain.TaskCounts
	for _, t := range r.tasks {
		c.Total++
		if t.Status == domain.TaskCompleted {
			c.Completed++
		} else {
			c.Pending++
		}
	}
	return c, nil
}

func (r *memRepo) CompleteTask(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID != id {
			continue
		}
		if r.tasks[i].Status == domain.TaskCompleted {
			return false, nil
		}
		r.tasks[i].Status = domain.TaskCompleted
		r.tasks[i].CompletedAt = at
		return true, nil
	}
	return false, domain.ErrTaskNotFound
}

type recorder struct {
	types []string
}

func (r *recorder) Publish(_ context.Context, ev domain.DecisionEvent) error {
	r.types = append(r.types, ev.Type)
	return nil
}

var now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTestService(repo *memRepo, rec *recorder, u *usage.Service) *Service {
	return NewService(repo, zerolog.Nop(),
		WithClock(func() time.Time { return now }),
		WithUsage(u),
		WithEvents(events.NewEmitter(rec, zerolog.Nop())))
}

func TestCreateAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	u := usage.NewService(counters.NewMemory(), zerolog.Nop())
	svc := newTestService(&memRepo{}, rec, u)

	task, err := svc.Create(ctx, CreateInput{Title: "  Prepare slides ", Source: domain.TaskSourceSlack})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if task.Title != "Prepare slides" || task.Deadline != domain.NoDeadline || task.Priority != domain.PriorityMedium {
		t.Fatalf("неверные значения по умолчанию: %+v", task)
	}
	if task.Status != domain.TaskPending || !task.CreatedAt.Equal(now) {
		t.Fatalf("неверный статус или время: %+v", task)
	}
	if task.Reminder != "Follow up tomorrow" {
		t.Fatalf("неверное напоминание: %q", task.Reminder)
	}

	d, err := u.Dashboard(ctx)
	if err != nil {
		t.Fatalf("панель: %v", err)
	}
	if d.TasksCreated != 1 {
		t.Fatalf("tasks_created = %d, ожидали 1", d.TasksCreated)
	}
	if len(rec.types) != 1 || rec.types[0] != domain.DecisionEventTaskCreated {
		t.Fatalf("ожидали событие task.created: %v", rec.types)
	}
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	svc := newTestService(&memRepo{}, &recorder{}, nil)
	if _, err := svc.Create(context.Background(), CreateInput{Title: "   "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получено %v", err)
	}
}

func TestCreateClipsLongTitle(t *testing.T) {
	svc := newTestService(&memRepo{}, &recorder{}, nil)
	task, err := svc.Create(context.Background(), CreateInput{Title: strings.Repeat("я", 300)})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if n := len([]rune(task.Title)); n != maxTitleRunes {
		t.Fatalf("длина заголовка %d, ожидали %d", n, maxTitleRunes)
	}
}

func TestCompleteCountsOnce(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	u := usage.NewService(counters.NewMemory(), zerolog.Nop())
	svc := newTestService(&memRepo{}, rec, u)

	task, err := svc.Create(ctx, CreateInput{Title: "Sign NDA", Deadline: "Friday", Priority: domain.PriorityHigh})
	if err != nil {
		t.Fatalf("создание: %v", err)
	}
	for i := 0; i < 2; i++ {
		done, err := svc.Complete(ctx, task.ID)
		if err != nil {
			t.Fatalf("завершение: %v", err)
		}
		if done.Status != domain.TaskCompleted {
			t.Fatalf("задача не завершена: %+v", done)
		}
	}

	d, err := u.Dashboard(ctx)
	if err != nil {
		t.Fatalf("панель: %v", err)
	}
	if d.TasksCompleted != 1 {
		t.Fatalf("tasks_completed = %d, ожидали 1", d.TasksCompleted)
	}
	if len(rec.types) != 2 || rec.types[1] != domain.DecisionEventTaskCompleted {
		t.Fatalf("ожидали одно событие task.completed: %v", rec.types)
	}

	sum, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("список: %v", err)
	}
	if sum.Total != 1 || sum.Completed != 1 || sum.Pending != 0 || len(sum.Tasks) != 1 {
		t.Fatalf("неверная сводка: %+v", sum)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	svc := newTestService(&memRepo{}, &recorder{}, nil)
	if _, err := svc.Complete(context.Background(), "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("ожидали ErrTaskNotFound, получено %v", err)
	}
	if _, err := svc.Complete(context.Background(), " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получено %v", err)
	}
}

func TestReminder(t *testing.T) {
	cases := []struct {
		prio     domain.PriorityLevel
		deadline string
		want     string
	}{
		{domain.PriorityHigh, "Friday", "Follow up within 2 hours (deadline: Friday)"},
		{domain.PriorityMedium, domain.NoDeadline, "Follow up tomorrow"},
		{domain.PriorityLow, "", "Review next week"},
	}
	for _, c := range cases {
		if got := Reminder(c.prio, c.deadline); got != c.want {
			t.Fatalf("Reminder(%s, %q) = %q, ожидали %q", c.prio, c.deadline, got, c.want)
		}
	}
}
