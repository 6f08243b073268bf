package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/adapters/drafter"
	"flowpilot/internal/adapters/repo"
	"flowpilot/internal/domain"
	"flowpilot/internal/infra/cache"
	"flowpilot/internal/infra/counters"
	"flowpilot/internal/infra/db"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

type fixedScorer struct {
	level domain.PriorityLevel
	total int
}

func (f fixedScorer) Score(string) domain.ScoreBreakdown {
	return domain.ScoreBreakdown{PriorityLevel: f.level, TotalScore: f.total}
}

type memQueue struct {
	jobs chan domain.AnalysisJob
}

func newMemQueue() *memQueue { return &memQueue{jobs: make(chan domain.AnalysisJob, 8)} }

func (q *memQueue) Enqueue(_ context.Context, job domain.AnalysisJob) error {
	q.jobs <- job
	return nil
}

func (q *memQueue) Pop(ctx context.Context) (domain.AnalysisJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return domain.AnalysisJob{}, ctx.Err()
	}
}

type stubNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *stubNotifier) Notify(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

type recorder struct {
	events []domain.DecisionEvent
}

func (r *recorder) Publish(_ context.Context, ev domain.DecisionEvent) error {
	r.events = append(r.events, ev)
	return nil
}

type failingDrafter struct{}

func (failingDrafter) Draft(context.Context, domain.DraftRequest) (string, error) {
	return "", errors.New("llm down")
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	usageSvc := usage.NewService(counters.NewMemory(), zerolog.Nop())
	rec := &recorder{}
	svc := NewService(fixedScorer{level: domain.PriorityHigh, total: 85}, drafter.NewTemplate(), zerolog.Nop(),
		WithUsage(usageSvc), WithEvents(events.NewEmitter(rec, zerolog.Nop())))

	res, err := svc.Analyze(ctx, "URGENT: please review the contract by Friday.")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Task != "review the contract by Friday." || res.Deadline != "Friday" || res.Priority != domain.PriorityHigh {
		t.Fatalf("неожиданный анализ: %+v", res)
	}
	if !strings.Contains(res.DraftReply, "handled immediately") {
		t.Fatalf("черновик не учитывает приоритет: %q", res.DraftReply)
	}
	d, _ := usageSvc.Dashboard(ctx)
	if d.EmailsProcessed != 1 {
		t.Fatalf("ожидали emails_processed = 1, получили %d", d.EmailsProcessed)
	}
	if len(rec.events) != 1 || rec.events[0].Type != domain.DecisionEventPriorityScored || rec.events[0].Payload["total_score"] != 85 {
		t.Fatalf("неожиданные события: %+v", rec.events)
	}
}

func TestAnalyzePersistsTask(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("не удалось открыть sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	store := repo.NewSQLite(conn)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("миграция: %v", err)
	}
	usageSvc := usage.NewService(counters.NewMemory(), zerolog.Nop())
	taskSvc := tasks.NewService(store, zerolog.Nop(), tasks.WithUsage(usageSvc))
	svc := NewService(fixedScorer{level: domain.PriorityHigh, total: 85}, drafter.NewTemplate(), zerolog.Nop(),
		WithUsage(usageSvc), WithTasks(taskSvc))

	res, err := svc.Analyze(ctx, "URGENT: please review the contract by Friday.")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.TaskID == "" || !strings.Contains(res.Reminder, "deadline: Friday") {
		t.Fatalf("задача не сохранена: %+v", res)
	}
	task, err := store.GetTask(ctx, res.TaskID)
	if err != nil {
		t.Fatalf("чтение задачи: %v", err)
	}
	if task.Title != res.Task || task.Priority != domain.PriorityHigh || !task.Autonomous || task.Source != domain.TaskSourceEmail {
		t.Fatalf("неверная задача: %+v", task)
	}
	d, _ := usageSvc.Dashboard(ctx)
	if d.TasksCreated != 1 || d.EmailsProcessed != 1 {
		t.Fatalf("ожидали tasks_created = 1 и emails_processed = 1, получили %+v", d.Counters)
	}
}

func TestAnalyzeRejectsEmpty(t *testing.T) {
	svc := NewService(fixedScorer{}, drafter.NewTemplate(), zerolog.Nop())
	if _, err := svc.Analyze(context.Background(), "  \n "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получили %v", err)
	}
}

func TestAnalyzeDrafterError(t *testing.T) {
	svc := NewService(fixedScorer{level: domain.PriorityLow}, failingDrafter{}, zerolog.Nop())
	if _, err := svc.Analyze(context.Background(), "hello"); err == nil {
		t.Fatalf("ожидали ошибку черновика")
	}
}

func TestSubmitWithoutQueue(t *testing.T) {
	svc := NewService(fixedScorer{}, drafter.NewTemplate(), zerolog.Nop())
	if _, err := svc.Submit(context.Background(), "hello", "", ""); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("ожидали ErrQueueDisabled, получили %v", err)
	}
}

func TestAsyncFlow(t *testing.T) {
	ctx := context.Background()
	q := newMemQueue()
	c := cache.NewMemory()
	n := &stubNotifier{}
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	svc := NewService(fixedScorer{level: domain.PriorityHigh, total: 90}, drafter.NewTemplate(), zerolog.Nop(),
		WithQueue(q, c), WithNotifier(n), WithClock(func() time.Time { return now }))

	job, err := svc.Submit(ctx, "Fix the outage immediately.", "#ops", domain.AnalysisCauseAPI)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := svc.JobResult(ctx, job.ID)
	if err != nil || res.Status != domain.JobStatusQueued {
		t.Fatalf("ожидали queued, получили %+v (%v)", res, err)
	}

	popped, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.ProcessJob(ctx, popped); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.ProcessJob(ctx, popped); err != nil {
		t.Fatalf("повторная обработка: %v", err)
	}
	if n.count() != 1 {
		t.Fatalf("повторная доставка не должна слать уведомление, отправлено %d", n.count())
	}

	res, err = svc.JobResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Status != domain.JobStatusDone || res.Priority != domain.PriorityHigh || res.TotalScore != 90 || res.Task != "Fix the outage immediately." {
		t.Fatalf("неожиданный результат: %+v", res)
	}
	if !res.CompletedAt.Equal(now) {
		t.Fatalf("неверное время завершения: %v", res.CompletedAt)
	}

	if _, err := svc.JobResult(ctx, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("ожидали ErrJobNotFound, получили %v", err)
	}
}

func TestProcessJobInvalidInputIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc := NewService(fixedScorer{}, drafter.NewTemplate(), zerolog.Nop(), WithQueue(newMemQueue(), cache.NewMemory()))
	job := domain.AnalysisJob{ID: "j1", EmailText: " "}
	if err := svc.ProcessJob(ctx, job); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := svc.JobResult(ctx, "j1")
	if err != nil || res.Status != domain.JobStatusFailed || res.Error == "" {
		t.Fatalf("ожидали failed, получили %+v (%v)", res, err)
	}
}

func TestRunWorkerStopsOnCancel(t *testing.T) {
	q := newMemQueue()
	c := cache.NewMemory()
	svc := NewService(fixedScorer{level: domain.PriorityLow}, drafter.NewTemplate(), zerolog.Nop(), WithQueue(q, c))
	ctx, cancel := context.WithCancel(context.Background())

	job, err := svc.Submit(ctx, "Check the logs.", "", domain.AnalysisCauseSlack)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- svc.RunWorker(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		res, _ := svc.JobResult(context.Background(), job.ID)
		if res.Status == domain.JobStatusDone {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("задача не обработана")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("воркер не остановился")
	}
}

func TestScorePublishesDecision(t *testing.T) {
	rec := &recorder{}
	svc := NewService(fixedScorer{level: domain.PriorityLow}, drafter.NewTemplate(), zerolog.Nop(),
		WithEvents(events.NewEmitter(rec, zerolog.Nop())))
	b := svc.Score(context.Background(), "")
	if b.PriorityLevel != domain.PriorityLow {
		t.Fatalf("неожиданный уровень %s", b.PriorityLevel)
	}
	if len(rec.events) != 1 || rec.events[0].Payload["priority_level"] != "Low" {
		t.Fatalf("неожиданные события: %+v", rec.events)
	}
}

func TestRunWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	q := newMemQueue()
	svc := NewService(fixedScorer{level: domain.PriorityLow}, failingDrafter{}, zerolog.Nop(), WithQueue(q, cache.NewMemory()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := svc.Submit(ctx, "Check the logs.", "", domain.AnalysisCauseAPI)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	go func() { _ = svc.RunWorker(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		res, _ := svc.JobResult(context.Background(), job.ID)
		if res.Status == domain.JobStatusFailed {
			if !strings.Contains(res.Error, "llm down") {
				t.Fatalf("ожидали исходную ошибку, получили %q", res.Error)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("задача не помечена как failed: %+v", res)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
