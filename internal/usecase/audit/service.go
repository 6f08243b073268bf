package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Состояния агентов.
const (
	AgentIdle      = "idle"
	AgentCompleted = "completed"
	AgentError     = "error"
)

// AgentKeys сопоставляет ключ панели агентов имени агента в журнале.
var AgentKeys = map[string]string{
	"email_agent":    domain.AgentEmail,
	"decision_agent": domain.AgentDecision,
	"calendar_agent": domain.AgentCalendar,
	"task_agent":     domain.AgentTask,
	"slack_agent":    domain.AgentSlack,
	"orchestrator":   domain.AgentOrchestrator,
}

// AgentState — последнее известное состояние агента.
type AgentState struct {
	Status  string
	LastRun time.Time
	Action  string
}

// Service ведёт журнал действий агентов.
type Service struct {
	repo domain.AuditRepo
	log  zerolog.Logger
	now  func() time.Time
}

// NewService создаёт сервис журнала.
func NewService(repo domain.AuditRepo, logger zerolog.Logger) *Service {
	return &Service{repo: repo, log: logger.With().Str("component", "audit").Logger(), now: time.Now}
}

// Record добавляет запись. Ошибка хранилища только логируется.
func (s *Service) Record(ctx context.Context, agent, action, details string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := domain.AuditEntry{
		Timestamp: s.now().UTC(),
		Agent:     agent,
		Action:    action,
		Details:   details,
	}
	if _, err := s.repo.AppendAudit(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("agent", agent).Str("action", action).Msg("не удалось записать событие аудита")
	}
}

// List возвращает последние записи, новые первыми.
func (s *Service) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	entries, err := s.repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}
	return entries, nil
}

// AgentStatus выводит состояние каждого агента из его последней записи в журнале.
// Агент без записей считается idle, запись с действием *_failed даёт error.
func (s *Service) AgentStatus(ctx context.Context) (map[string]AgentState, error) {
	entries, err := s.repo.ListAudit(ctx, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}
	latest := make(map[string]domain.AuditEntry, len(AgentKeys))
	for _, e := range entries {
		if _, seen := latest[e.Agent]; !seen {
			latest[e.Agent] = e
		}
	}
	out := make(map[string]AgentState, len(AgentKeys))
	for key, agent := range AgentKeys {
		e, ok := latest[agent]
		if !ok {
			out[key] = AgentState{Status: AgentIdle}
			continue
		}
		status := AgentCompleted
		if strings.HasSuffix(e.Action, "_failed") {
			status = AgentError
		}
		out[key] = AgentState{Status: status, LastRun: e.Timestamp, Action: e.Action}
	}
	return out, nil
}

// Clear очищает журнал.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.ClearAudit(ctx); err != nil {
		return fmt.Errorf("очистка журнала: %w", err)
	}
	s.log.Info().Msg("журнал аудита очищен")
	return nil
}
