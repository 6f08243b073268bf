package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
)

type stubRepo struct {
	entries   []domain.AuditEntry
	appendErr error
	lastLimit int
	cleared   bool
}

func (s *stubRepo) AppendAudit(_ context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	if s.appendErr != nil {
		return domain.AuditEntry{}, s.appendErr
	}
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *stubRepo) ListAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.lastLimit = limit
	return s.entries, nil
}

func (s *stubRepo) ClearAudit(context.Context) error {
	s.cleared = true
	s.entries = nil
	return nil
}

func TestRecordAppendsEntry(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, zerolog.Nop())
	svc.Record(context.Background(), domain.AgentDecision, "Scored email", "High (75)")
	if len(repo.entries) != 1 {
		t.Fatalf("ожидали 1 запись")
	}
	got := repo.entries[0]
	if got.Agent != domain.AgentDecision || got.Action != "Scored email" || got.Timestamp.IsZero() {
		t.Fatalf("неожиданная запись: %+v", got)
	}
}

func TestRecordSwallowsErrors(t *testing.T) {
	repo := &stubRepo{appendErr: errors.New("db down")}
	svc := NewService(repo, zerolog.Nop())
	svc.Record(context.Background(), domain.AgentEmail, "x", "y")

	var nilSvc *Service
	nilSvc.Record(context.Background(), domain.AgentEmail, "x", "y")
}

func TestListClampsLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, zerolog.Nop())
	if _, err := svc.List(context.Background(), 0); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.lastLimit != defaultListLimit {
		t.Fatalf("ожидали лимит по умолчанию, получили %d", repo.lastLimit)
	}
	_, _ = svc.List(context.Background(), 10000)
	if repo.lastLimit != maxListLimit {
		t.Fatalf("ожидали верхний предел, получили %d", repo.lastLimit)
	}
}

func TestClear(t *testing.T) {
	repo := &stubRepo{entries: []domain.AuditEntry{{ID: 1}}}
	svc := NewService(repo, zerolog.Nop())
	if err := svc.Clear(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !repo.cleared || len(repo.entries) != 0 {
		t.Fatalf("журнал должен быть очищен")
	}
}

func TestAgentStatusFromLatestEntry(t *testing.T) {
	t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	repo := &stubRepo{entries: []domain.AuditEntry{
		{ID: 4, Timestamp: t0.Add(3 * time.Minute), Agent: domain.AgentEmail, Action: "analysis_failed"},
		{ID: 3, Timestamp: t0.Add(2 * time.Minute), Agent: domain.AgentCalendar, Action: "event_created"},
		{ID: 2, Timestamp: t0.Add(time.Minute), Agent: domain.AgentEmail, Action: "email_analyzed"},
		{ID: 1, Timestamp: t0, Agent: domain.AgentCalendar, Action: "event_cancelled"},
	}}
	svc := NewService(repo, zerolog.Nop())

	got, err := svc.AgentStatus(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != len(AgentKeys) {
		t.Fatalf("ожидали %d агентов, получили %d", len(AgentKeys), len(got))
	}
	if st := got["email_agent"]; st.Status != AgentError || !st.LastRun.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("email_agent: %+v", st)
	}
	if st := got["calendar_agent"]; st.Status != AgentCompleted || st.Action != "event_created" {
		t.Fatalf("calendar_agent: %+v", st)
	}
	if st := got["task_agent"]; st.Status != AgentIdle || !st.LastRun.IsZero() {
		t.Fatalf("task_agent без записей должен быть idle: %+v", st)
	}
	if repo.lastLimit != maxListLimit {
		t.Fatalf("ожидали лимит %d, получили %d", maxListLimit, repo.lastLimit)
	}
}
