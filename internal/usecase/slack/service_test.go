package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/counters"
	"flowpilot/internal/usecase/calendar"
	"flowpilot/internal/usecase/conflict"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

type memMessages struct {
	msgs []domain.SlackMessage
}

func (r *memMessages) SaveMessage(_ context.Context, m domain.SlackMessage) (domain.SlackMessage, error) {
	m.ID = fmt.Sprintf("m-%d", len(r.msgs)+1)
	r.msgs = append(r.msgs, m)
	return m, nil
}

func (r *memMessages) ListMessages(_ context.Context, limit int) ([]domain.SlackMessage, error) {
	out := make([]domain.SlackMessage, 0, len(r.msgs))
	for i := len(r.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.msgs[i])
	}
	return out, nil
}

type memEvents struct {
	events []domain.CalendarEvent
}

func (r *memEvents) CreateEvent(_ context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	ev.ID = fmt.Sprintf("ev-%d", len(r.events)+1)
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *memEvents) ListEvents(context.Context) ([]domain.CalendarEvent, error) {
	return r.events, nil
}

func (r *memEvents) ListEventsByDate(_ context.Context, date time.Time) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	for _, e := range r.events {
		if domain.SameDate(e.Date, date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEvents) ListScheduledUntil(context.Context, time.Time) ([]domain.CalendarEvent, error) {
	return nil, nil
}

func (r *memEvents) UpdateEventStatus(context.Context, string, domain.EventStatus) error {
	return nil
}

type memTasks struct {
	tasks []domain.Task
}

func (r *memTasks) CreateTask(_ context.Context, t domain.Task) (domain.Task, error) {
	t.ID = fmt.Sprintf("task-%d", len(r.tasks)+1)
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *memTasks) GetTask(_ context.Context, id string) (domain.Task, error) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, domain.ErrTaskNotFound
}

func (r *memTasks) ListTasks(context.Context, int) ([]domain.Task, error) { return r.tasks, nil }

func (r *memTasks) CountTasks(context.Context) (domain.TaskCounts, error) {
	return domain.TaskCounts{Total: len(r.tasks), Pending: len(r.tasks)}, nil
}

func (r *memTasks) CompleteTask(context.Context, string, time.Time) (bool, error) { return true, nil }

type fixedScorer struct{}

func (fixedScorer) Score(string) domain.ScoreBreakdown {
	return domain.ScoreBreakdown{PriorityLevel: domain.PriorityMedium, TotalScore: 55}
}

type stubNotifier struct {
	err   error
	posts []string
}

func (n *stubNotifier) Notify(_ context.Context, channel, text string) error {
	n.posts = append(n.posts, channel+"|"+text)
	return n.err
}

type fixture struct {
	svc    *Service
	msgs   *memMessages
	events *memEvents
	tasks  *memTasks
	usage  *usage.Service
}

func newFixture(opts ...Option) fixture {
	msgs := &memMessages{}
	evs := &memEvents{}
	u := usage.NewService(counters.NewMemory(), zerolog.Nop())
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	cal := calendar.NewService(evs, conflict.NewDetector(conflict.DefaultConfig()), zerolog.Nop(),
		calendar.WithClock(func() time.Time { return now }), calendar.WithUsage(u))
	ts := &memTasks{}
	taskSvc := tasks.NewService(ts, zerolog.Nop(), tasks.WithUsage(u))
	opts = append([]Option{WithUsage(u), WithTasks(taskSvc)}, opts...)
	return fixture{
		svc:    NewService(msgs, cal, fixedScorer{}, zerolog.Nop(), opts...),
		msgs:   msgs,
		events: evs,
		tasks:  ts,
		usage:  u,
	}
}

func TestSendStatuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	msg, err := f.svc.Send(ctx, "", "Deploy finished")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Channel != "#general" || msg.Status != domain.MessageSimulated || msg.Action != ActionMessage {
		t.Fatalf("неожиданное сообщение: %+v", msg)
	}

	n := &stubNotifier{}
	f = newFixture(WithNotifier(n))
	msg, _ = f.svc.Send(ctx, "#ops", "hi")
	if msg.Status != domain.MessageSent || len(n.posts) != 1 || n.posts[0] != "#ops|hi" {
		t.Fatalf("ожидали отправку: %+v %q", msg, n.posts)
	}

	f = newFixture(WithNotifier(&stubNotifier{err: errors.New("down")}))
	msg, err = f.svc.Send(ctx, "#ops", "hi")
	if err != nil || msg.Status != domain.MessageFailed {
		t.Fatalf("ожидали failed без ошибки: %+v (%v)", msg, err)
	}
	d, _ := f.usage.Dashboard(ctx)
	if d.SlackMessages != 0 {
		t.Fatalf("неотправленное сообщение не считается")
	}

	if _, err := f.svc.Send(ctx, "#ops", "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получили %v", err)
	}
}

func TestHandleCommandScheduleMeeting(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	reply, err := f.svc.HandleCommand(ctx, "#general", "@FlowPilot schedule meeting tomorrow")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if reply != "📅 Meeting scheduled for 2026-10-20 at 09:00 AM (60 min)." {
		t.Fatalf("неожиданный ответ %q", reply)
	}
	reply, _ = f.svc.HandleCommand(ctx, "#general", "@FlowPilot schedule meeting 2026-10-20")
	if !strings.Contains(reply, "10:00 AM") {
		t.Fatalf("второй слот должен быть 10:00 AM: %q", reply)
	}
	if len(f.events.events) != 2 {
		t.Fatalf("ожидали 2 встречи")
	}
	if f.msgs.msgs[0].Action != ActionScheduleMeeting || f.msgs.msgs[0].Message != "@FlowPilot schedule meeting tomorrow" {
		t.Fatalf("команда не записана: %+v", f.msgs.msgs[0])
	}
	if _, err := f.svc.HandleCommand(ctx, "", "@FlowPilot schedule meeting someday"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получили %v", err)
	}
}

func TestHandleCommandTasksAndAgenda(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	reply, _ := f.svc.HandleCommand(ctx, "", "@FlowPilot urgent: review budget")
	if reply != "⚡ Urgent task created: review budget (priority High, score 55, id task-1)." {
		t.Fatalf("неожиданный ответ %q", reply)
	}
	reply, _ = f.svc.HandleCommand(ctx, "", "@FlowPilot create task for Q1 review")
	if reply != "✅ Task created: Q1 review (priority Medium, id task-2)." {
		t.Fatalf("неожиданный ответ %q", reply)
	}
	if len(f.tasks.tasks) != 2 || f.tasks.tasks[0].Source != domain.TaskSourceSlack || f.tasks.tasks[0].Priority != domain.PriorityHigh {
		t.Fatalf("задачи не сохранены: %+v", f.tasks.tasks)
	}
	d, _ := f.usage.Dashboard(ctx)
	if d.TasksCreated != 2 || d.SlackMessages != 2 {
		t.Fatalf("неверные счётчики: %+v", d.Counters)
	}

	reply, _ = f.svc.HandleCommand(ctx, "", "@FlowPilot what's on my calendar today?")
	if reply != "📋 Nothing scheduled for 2026-10-19." {
		t.Fatalf("неожиданный ответ %q", reply)
	}
	if _, err := f.svc.HandleCommand(ctx, "", "@FlowPilot schedule meeting today"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	reply, _ = f.svc.HandleCommand(ctx, "", "what's on my calendar")
	if !strings.HasPrefix(reply, "📋 1 meeting(s) on 2026-10-19:") || !strings.Contains(reply, "09:00 AM Meeting") {
		t.Fatalf("неожиданный ответ %q", reply)
	}
}

func TestTaskCommandsWithoutTaskList(t *testing.T) {
	ctx := context.Background()
	msgs := &memMessages{}
	u := usage.NewService(counters.NewMemory(), zerolog.Nop())
	cal := calendar.NewService(&memEvents{}, conflict.NewDetector(conflict.DefaultConfig()), zerolog.Nop())
	svc := NewService(msgs, cal, fixedScorer{}, zerolog.Nop(), WithUsage(u))

	reply, err := svc.HandleCommand(ctx, "", "@FlowPilot urgent: review budget")
	if err != nil || reply != noTaskList {
		t.Fatalf("ожидали отказ, получили %q (%v)", reply, err)
	}
	d, _ := u.Dashboard(ctx)
	if d.TasksCreated != 0 {
		t.Fatalf("задача не создавалась, а tasks_created = %d", d.TasksCreated)
	}
}

func TestHandleCommandHelp(t *testing.T) {
	f := newFixture()
	reply, err := f.svc.HandleCommand(context.Background(), "", "@FlowPilot dance")
	if err != nil || reply != helpText {
		t.Fatalf("ожидали справку, получили %q (%v)", reply, err)
	}
	if f.msgs.msgs[0].Action != ActionHelp {
		t.Fatalf("неверное действие %s", f.msgs.msgs[0].Action)
	}
	if _, err := f.svc.HandleCommand(context.Background(), "", " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput, получили %v", err)
	}
}

func TestListLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	for i := 0; i < 3; i++ {
		_, _ = f.svc.Send(ctx, "", fmt.Sprintf("msg %d", i))
	}
	msgs, err := f.svc.List(ctx, 2)
	if err != nil || len(msgs) != 2 || msgs[0].Message != "msg 2" {
		t.Fatalf("неожиданный список: %+v (%v)", msgs, err)
	}
}
