package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/infra/metrics"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/conflict"
	"flowpilot/internal/usecase/usage"
)

// ErrNoFreeSlot возвращается, если в рабочем дне не осталось свободного времени.
var ErrNoFreeSlot = errors.New("no free slot in the business day")

const defaultStart = "09:00 AM"

// CreateInput — данные новой встречи от клиента.
type CreateInput struct {
	Title           string
	Date            string
	Time            string
	DurationMinutes int
	Attendees       []string
}

// Service управляет календарём и проверяет конфликты.
type Service struct {
	repo     domain.CalendarRepo
	detector *conflict.Detector
	usage    *usage.Service
	audit    *audit.Service
	events   *events.Emitter
	log      zerolog.Logger
	now      func() time.Time
	loc      *time.Location
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

// WithLocation задаёт часовой пояс, в котором записаны даты и время встреч.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService создаёт сервис календаря.
func NewService(repo domain.CalendarRepo, detector *conflict.Detector, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		detector: detector,
		log:      logger.With().Str("component", "calendar").Logger(),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today возвращает текущую дату в часовом поясе календаря.
func (s *Service) Today() time.Time {
	return domain.DateOf(s.now().In(s.loc))
}

// List возвращает все события или события одного дня, если дата задана.
func (s *Service) List(ctx context.Context, date string) ([]domain.CalendarEvent, error) {
	var (
		list []domain.CalendarEvent
		err  error
	)
	if strings.TrimSpace(date) == "" {
		list, err = s.repo.ListEvents(ctx)
	} else {
		day, perr := domain.ParseDate(date)
		if perr != nil {
			return nil, perr
		}
		list, err = s.repo.ListEventsByDate(ctx, day)
	}
	if err != nil {
		return nil, fmt.Errorf("чтение календаря: %w", err)
	}
	return list, nil
}

// Agenda возвращает активные события дня.
func (s *Service) Agenda(ctx context.Context, day time.Time) ([]domain.CalendarEvent, error) {
	list, err := s.repo.ListEventsByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("чтение календаря: %w", err)
	}
	active := make([]domain.CalendarEvent, 0, len(list))
	for _, e := range list {
		if e.Active() {
			active = append(active, e)
		}
	}
	return active, nil
}

// Create сохраняет встречу и возвращает предупреждение о конфликтах на эту дату.
// Конфликт не мешает созданию.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.CalendarEvent, domain.ConflictResult, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.CalendarEvent{}, domain.ConflictResult{}, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	slot := strings.TrimSpace(in.Time)
	if slot == "" {
		slot = defaultStart
	}
	q, err := conflict.ParseQuery(in.Date, slot, in.DurationMinutes)
	if err != nil {
		return domain.CalendarEvent{}, domain.ConflictResult{}, err
	}
	if q.DurationMinutes == 0 {
		q.DurationMinutes = s.detector.Config().DefaultDuration
	}

	existing, err := s.repo.ListEventsByDate(ctx, q.Date)
	if err != nil {
		return domain.CalendarEvent{}, domain.ConflictResult{}, fmt.Errorf("чтение календаря: %w", err)
	}
	warning := s.detector.Detect(q, existing)
	metrics.ObserveConflictCheck(warning.HasConflicts)

	ev, err := s.repo.CreateEvent(ctx, domain.CalendarEvent{
		Title:           title,
		Date:            q.Date,
		Time:            q.Time,
		DurationMinutes: q.DurationMinutes,
		Attendees:       cleanAttendees(in.Attendees),
		Status:          domain.EventScheduled,
	})
	if err != nil {
		return domain.CalendarEvent{}, domain.ConflictResult{}, fmt.Errorf("сохранение встречи: %w", err)
	}

	s.usage.Track(ctx, domain.CounterMeetingsScheduled)
	s.audit.Record(ctx, domain.AgentCalendar, "event_created",
		fmt.Sprintf("%s on %s at %s", ev.Title, ev.Date.Format(domain.DateLayout), ev.Time))
	s.events.Emit(ctx, domain.DecisionEventEventCreated, ev.ID, map[string]any{
		"title":            ev.Title,
		"date":             ev.Date.Format(domain.DateLayout),
		"time":             ev.Time.String(),
		"duration_minutes": ev.DurationMinutes,
		"has_conflicts":    warning.HasConflicts,
	})
	if warning.HasConflicts {
		s.reportConflict(ctx, warning)
	}
	s.log.Info().Str("event_id", ev.ID).Bool("conflicts", warning.HasConflicts).Msg("встреча создана")
	return ev, warning, nil
}

// Schedule бронирует первый свободный слот рабочего дня.
func (s *Service) Schedule(ctx context.Context, title string, day time.Time, duration int, attendees []string) (domain.CalendarEvent, error) {
	existing, err := s.repo.ListEventsByDate(ctx, day)
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("чтение календаря: %w", err)
	}
	slot, ok := s.detector.FirstFree(day, duration, existing)
	if !ok {
		return domain.CalendarEvent{}, ErrNoFreeSlot
	}
	ev, _, err := s.Create(ctx, CreateInput{
		Title:           title,
		Date:            day.Format(domain.DateLayout),
		Time:            slot.String(),
		DurationMinutes: duration,
		Attendees:       attendees,
	})
	return ev, err
}

// Cancel отменяет встречу.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	if err := s.repo.UpdateEventStatus(ctx, id, domain.EventCancelled); err != nil {
		return fmt.Errorf("отмена встречи %s: %w", id, err)
	}
	s.audit.Record(ctx, domain.AgentCalendar, "event_cancelled", "Event "+id)
	return nil
}

// CheckConflicts проверяет слот по данным из хранилища.
func (s *Service) CheckConflicts(ctx context.Context, date, slot string, duration int) (domain.ConflictResult, error) {
	q, err := conflict.ParseQuery(date, slot, duration)
	if err != nil {
		return domain.ConflictResult{}, err
	}
	existing, err := s.repo.ListEventsByDate(ctx, q.Date)
	if err != nil {
		return domain.ConflictResult{}, fmt.Errorf("чтение календаря: %w", err)
	}
	res := s.detector.Detect(q, existing)
	metrics.ObserveConflictCheck(res.HasConflicts)
	if res.HasConflicts {
		s.reportConflict(ctx, res)
	}
	return res, nil
}

// CompleteElapsed помечает завершёнными запланированные встречи, которые уже закончились.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	list, err := s.repo.ListScheduledUntil(ctx, domain.DateOf(now))
	if err != nil {
		return 0, fmt.Errorf("чтение календаря: %w", err)
	}
	defDuration := s.detector.Config().DefaultDuration
	done := 0
	for _, e := range list {
		duration := e.DurationMinutes
		if duration <= 0 {
			duration = defDuration
		}
		y, m, d := e.Date.Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, s.loc).Add(time.Duration(e.Time.Minutes()+duration) * time.Minute)
		if end.After(now) {
			continue
		}
		if err := s.repo.UpdateEventStatus(ctx, e.ID, domain.EventCompleted); err != nil {
			return done, fmt.Errorf("завершение встречи %s: %w", e.ID, err)
		}
		done++
	}
	if done > 0 {
		s.audit.Record(ctx, domain.AgentCalendar, "events_completed", fmt.Sprintf("%d meetings marked completed", done))
	}
	return done, nil
}

func (s *Service) reportConflict(ctx context.Context, res domain.ConflictResult) {
	s.audit.Record(ctx, domain.AgentCalendar, "conflict_detected",
		fmt.Sprintf("%d conflict(s) on %s at %s", res.ConflictCount, res.Date.Format(domain.DateLayout), res.Time))
	ids := make([]string, 0, len(res.Conflicts))
	for _, c := range res.Conflicts {
		ids = append(ids, c.ID)
	}
	s.events.Emit(ctx, domain.DecisionEventConflictDetected, res.Date.Format(domain.DateLayout)+" "+res.Time.String(), map[string]any{
		"conflict_count": res.ConflictCount,
		"conflict_ids":   ids,
		"suggestions":    len(res.Suggestions),
	})
}

func cleanAttendees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
