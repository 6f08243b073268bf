package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/usage"
)

// ErrNoNotifier возвращается, если сводку некуда отправить.
var ErrNoNotifier = errors.New("no notifier configured for daily summary")

// AgendaSource отдаёт активные встречи дня.
type AgendaSource interface {
	Today() time.Time
	Agenda(ctx context.Context, day time.Time) ([]domain.CalendarEvent, error)
}

// StatsSource отдаёт снимок метрик использования.
type StatsSource interface {
	Dashboard(ctx context.Context) (usage.Dashboard, error)
}

// Summary — ежедневная сводка: показатели и встречи на ближайший рабочий день.
type Summary struct {
	Day     time.Time
	Stats   usage.Dashboard
	Today   []domain.CalendarEvent
	NextDay time.Time
	Next    []domain.CalendarEvent
}

// Service собирает и рассылает ежедневную сводку.
type Service struct {
	calendar AgendaSource
	stats    StatsSource
	notifier domain.Notifier
	channel  string
	audit    *audit.Service
	log      zerolog.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithNotifier задаёт канал доставки и адресата сводки.
func WithNotifier(n domain.Notifier, channel string) Option {
	return func(s *Service) {
		s.notifier = n
		s.channel = channel
	}
}

// WithAudit включает запись отправки в журнал.
func WithAudit(a *audit.Service) Option { return func(s *Service) { s.audit = a } }

// NewService создаёт сервис сводок.
func NewService(calendar AgendaSource, stats StatsSource, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		calendar: calendar,
		stats:    stats,
		log:      logger.With().Str("component", "digest").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build собирает сводку за день.
func (s *Service) Build(ctx context.Context, day time.Time) (Summary, error) {
	day = domain.DateOf(day)
	stats, err := s.stats.Dashboard(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("метрики: %w", err)
	}
	today, err := s.calendar.Agenda(ctx, day)
	if err != nil {
		return Summary{}, fmt.Errorf("встречи дня: %w", err)
	}
	next := NextWorkday(day)
	upcoming, err := s.calendar.Agenda(ctx, next)
	if err != nil {
		return Summary{}, fmt.Errorf("встречи следующего дня: %w", err)
	}
	return Summary{Day: day, Stats: stats, Today: today, NextDay: next, Next: upcoming}, nil
}

// BuildAndSend собирает сводку за сегодня и отправляет её.
func (s *Service) BuildAndSend(ctx context.Context) error {
	if s.notifier == nil {
		return ErrNoNotifier
	}
	sum, err := s.Build(ctx, s.calendar.Today())
	if err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, s.channel, Format(sum)); err != nil {
		return fmt.Errorf("отправка сводки: %w", err)
	}
	s.audit.Record(ctx, domain.AgentOrchestrator, "daily_summary_sent",
		fmt.Sprintf("%s: %d meeting(s) next, %d email(s) processed", sum.Day.Format(domain.DateLayout), len(sum.Next), sum.Stats.EmailsProcessed))
	s.log.Info().Str("channel", s.channel).Time("day", sum.Day).Msg("сводка отправлена")
	return nil
}

// NextWorkday возвращает следующий день, пропуская выходные.
func NextWorkday(day time.Time) time.Time {
	next := day.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
