package usage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
)

// ErrUnknownCounter возвращается для неизвестного имени счётчика.
var ErrUnknownCounter = errors.New("unknown usage counter")

// Минуты, сэкономленные одним действием.
const (
	minutesPerEmail   = 5
	minutesPerTask    = 10
	minutesPerMeeting = 15
	minutesPerSlack   = 2
)

// Counters — значения счётчиков использования.
type Counters struct {
	EmailsProcessed     int64
	TasksCreated        int64
	TasksCompleted      int64
	MeetingsScheduled   int64
	SlackMessages       int64
	AutonomousApprovals int64
	HumanApprovals      int64
}

// Enterprise — производные показатели для руководства.
type Enterprise struct {
	ROIIndicator        string
	AutomationRate      string
	TasksPerDay         float64
	EmailProcessingRate float64
}

// Dashboard — снимок панели метрик.
type Dashboard struct {
	Counters
	TimeSavedMinutes int64
	TimeSavedHours   float64
	EfficiencyScore  float64
	UptimeHours      float64
	Enterprise       Enterprise
}

// Service считает использование через внедрённое хранилище счётчиков.
type Service struct {
	counters domain.UsageCounters
	log      zerolog.Logger
	started  time.Time
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени для расчёта аптайма.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.started = now()
	}
}

// NewService создаёт сервис метрик использования.
func NewService(counters domain.UsageCounters, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		counters: counters,
		log:      logger.With().Str("component", "usage").Logger(),
		now:      time.Now,
	}
	s.started = s.now()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record увеличивает счётчик.
func (s *Service) Record(ctx context.Context, name string, delta int64) error {
	if !known(name) {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, name)
	}
	if delta <= 0 {
		delta = 1
	}
	if err := s.counters.Incr(ctx, name, delta); err != nil {
		return fmt.Errorf("увеличение счётчика %s: %w", name, err)
	}
	return nil
}

// Track увеличивает счётчик на единицу, ошибки только логируются.
func (s *Service) Track(ctx context.Context, name string) {
	if s == nil {
		return
	}
	if err := s.Record(ctx, name, 1); err != nil {
		s.log.Warn().Err(err).Str("counter", name).Msg("не удалось обновить счётчик")
	}
}

// Reset обнуляет все счётчики.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.counters.Reset(ctx); err != nil {
		return fmt.Errorf("сброс счётчиков: %w", err)
	}
	s.log.Info().Msg("счётчики использования сброшены")
	return nil
}

// Dashboard собирает снимок счётчиков и производные показатели.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	snap, err := s.counters.Snapshot(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("чтение счётчиков: %w", err)
	}
	c := Counters{
		EmailsProcessed:     snap[domain.CounterEmailsProcessed],
		TasksCreated:        snap[domain.CounterTasksCreated],
		TasksCompleted:      snap[domain.CounterTasksCompleted],
		MeetingsScheduled:   snap[domain.CounterMeetingsScheduled],
		SlackMessages:       snap[domain.CounterSlackMessages],
		AutonomousApprovals: snap[domain.CounterAutonomousApprovals],
		HumanApprovals:      snap[domain.CounterHumanApprovals],
	}
	return Compute(c, s.now().Sub(s.started)), nil
}

// Compute выводит показатели панели из значений счётчиков и аптайма.
func Compute(c Counters, uptime time.Duration) Dashboard {
	d := Dashboard{Counters: c}
	d.TimeSavedMinutes = c.EmailsProcessed*minutesPerEmail +
		c.TasksCreated*minutesPerTask +
		c.MeetingsScheduled*minutesPerMeeting +
		c.SlackMessages*minutesPerSlack
	d.TimeSavedHours = round1(float64(d.TimeSavedMinutes) / 60)
	if c.TasksCreated > 0 {
		d.EfficiencyScore = round1(float64(c.TasksCompleted) / float64(c.TasksCreated) * 100)
	}
	if uptime < 0 {
		uptime = 0
	}
	d.UptimeHours = round1(uptime.Hours())

	switch {
	case d.TimeSavedHours >= 10:
		d.Enterprise.ROIIndicator = "High"
	case d.TimeSavedHours >= 2:
		d.Enterprise.ROIIndicator = "Medium"
	default:
		d.Enterprise.ROIIndicator = "Low"
	}

	approvals := c.AutonomousApprovals + c.HumanApprovals
	rate := 0.0
	if approvals > 0 {
		rate = float64(c.AutonomousApprovals) / float64(approvals) * 100
	}
	d.Enterprise.AutomationRate = fmt.Sprintf("%.0f%%", rate)

	days := uptime.Hours() / 24
	if days < 1 {
		days = 1
	}
	d.Enterprise.TasksPerDay = round1(float64(c.TasksCreated) / days)

	hours := uptime.Hours()
	if hours < 1 {
		hours = 1
	}
	d.Enterprise.EmailProcessingRate = round1(float64(c.EmailsProcessed) / hours)
	return d
}

func known(name string) bool {
	for _, n := range domain.UsageCounterNames {
		if n == name {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
