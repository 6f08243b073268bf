package slack

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/calendar"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	meetingDuration  = 60
)

// Действия, под которыми сообщения попадают в историю.
const (
	ActionMessage         = "message"
	ActionScheduleMeeting = "schedule_meeting"
	ActionUrgentTask      = "urgent_task"
	ActionCreateTask      = "create_task"
	ActionCalendarQuery   = "calendar_query"
	ActionHelp            = "help"
)

const helpText = `I can help with:
• @FlowPilot schedule meeting <today|tomorrow|YYYY-MM-DD>
• @FlowPilot urgent: <task>
• @FlowPilot create task <task>
• @FlowPilot what's on my calendar [today|tomorrow]`

const noTaskList = "❌ Task list is not available, nothing was created."

var (
	mentionPrefix = regexp.MustCompile(`(?i)^\s*@?flowpilot\b[:,]?\s*`)
	scheduleCmd   = regexp.MustCompile(`(?i)^schedule\s+(?:a\s+)?meeting\b\s*(?:(?:for|on)\s+)?(.*)$`)
	urgentCmd     = regexp.MustCompile(`(?i)^urgent\s*:\s*(.*)$`)
	createTaskCmd = regexp.MustCompile(`(?i)^create\s+(?:a\s+)?task\b\s*(?:for\s+|:\s*)?(.*)$`)
	agendaCmd     = regexp.MustCompile(`(?i)^what['’]?s\s+on\s+my\s+calendar\b\s*(.*?)\??$`)
)

// Scorer оценивает приоритет текста.
type Scorer interface {
	Score(emailText string) domain.ScoreBreakdown
}

// Service отправляет сообщения и обрабатывает команды @FlowPilot.
type Service struct {
	repo           domain.MessageRepo
	notifier       domain.Notifier
	calendar       *calendar.Service
	tasks          *tasks.Service
	scorer         Scorer
	usage          *usage.Service
	audit          *audit.Service
	defaultChannel string
	log            zerolog.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithNotifier включает реальную отправку. Без него сообщения помечаются simulated.
func WithNotifier(n domain.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithUsage подключает счётчики использования.
func WithUsage(u *usage.Service) Option { return func(s *Service) { s.usage = u } }

// WithAudit подключает журнал.
func WithAudit(a *audit.Service) Option { return func(s *Service) { s.audit = a } }

// WithTasks включает создание задач командами urgent и create task.
func WithTasks(t *tasks.Service) Option { return func(s *Service) { s.tasks = t } }

// WithDefaultChannel задаёт канал для сообщений без явного канала.
func WithDefaultChannel(ch string) Option { return func(s *Service) { s.defaultChannel = ch } }

// NewService создаёт сервис Slack-интеграции.
func NewService(repo domain.MessageRepo, cal *calendar.Service, scorer Scorer, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		calendar:       cal,
		scorer:         scorer,
		defaultChannel: "#general",
		log:            logger.With().Str("component", "slack").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send публикует сообщение в канал и сохраняет его в истории.
func (s *Service) Send(ctx context.Context, channel, text string) (domain.SlackMessage, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SlackMessage{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	channel = s.channel(channel)
	msg, err := s.record(ctx, channel, strings.TrimSpace(text), ActionMessage, s.deliver(ctx, channel, text))
	if err != nil {
		return domain.SlackMessage{}, err
	}
	action := "message_sent"
	if msg.Status == domain.MessageFailed {
		action = "message_failed"
	}
	s.audit.Record(ctx, domain.AgentSlack, action, fmt.Sprintf("%s (%s)", channel, msg.Status))
	return msg, nil
}

// List возвращает историю сообщений, новые первыми.
func (s *Service) List(ctx context.Context, limit int) ([]domain.SlackMessage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	msgs, err := s.repo.ListMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("чтение сообщений: %w", err)
	}
	return msgs, nil
}

// HandleCommand разбирает команду @FlowPilot и возвращает текст ответа.
func (s *Service) HandleCommand(ctx context.Context, channel, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: command is required", domain.ErrInvalidInput)
	}
	cmd := strings.TrimSpace(mentionPrefix.ReplaceAllString(text, ""))
	channel = s.channel(channel)

	action, reply, err := s.dispatch(ctx, cmd)
	if err != nil {
		return "", err
	}
	if _, err := s.record(ctx, channel, strings.TrimSpace(text), action, s.deliver(ctx, channel, reply)); err != nil {
		return "", err
	}
	s.audit.Record(ctx, domain.AgentSlack, "command_"+action, cmd)
	return reply, nil
}

func (s *Service) dispatch(ctx context.Context, cmd string) (string, string, error) {
	if m := scheduleCmd.FindStringSubmatch(cmd); m != nil {
		reply, err := s.scheduleMeeting(ctx, m[1])
		return ActionScheduleMeeting, reply, err
	}
	if m := urgentCmd.FindStringSubmatch(cmd); m != nil {
		reply, err := s.urgentTask(ctx, strings.TrimSpace(m[1]))
		return ActionUrgentTask, reply, err
	}
	if m := createTaskCmd.FindStringSubmatch(cmd); m != nil {
		reply, err := s.createTask(ctx, strings.TrimSpace(m[1]))
		return ActionCreateTask, reply, err
	}
	if m := agendaCmd.FindStringSubmatch(cmd); m != nil {
		reply, err := s.agenda(ctx, m[1])
		return ActionCalendarQuery, reply, err
	}
	return ActionHelp, helpText, nil
}

func (s *Service) scheduleMeeting(ctx context.Context, when string) (string, error) {
	day, err := s.resolveDay(when, 1)
	if err != nil {
		return "", err
	}
	ev, err := s.calendar.Schedule(ctx, "Meeting (scheduled from Slack)", day, meetingDuration, nil)
	if errors.Is(err, calendar.ErrNoFreeSlot) {
		return fmt.Sprintf("❌ No free slot on %s between business hours.", day.Format(domain.DateLayout)), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📅 Meeting scheduled for %s at %s (%d min).", ev.Date.Format(domain.DateLayout), ev.Time, ev.DurationMinutes), nil
}

func (s *Service) urgentTask(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "Please describe the urgent task, e.g. `@FlowPilot urgent: review budget`.", nil
	}
	if s.tasks == nil {
		return noTaskList, nil
	}
	score := s.scorer.Score("urgent: " + text)
	task, err := s.tasks.Create(ctx, tasks.CreateInput{
		Title:      text,
		Priority:   domain.PriorityHigh,
		SourceText: text,
		Source:     domain.TaskSourceSlack,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⚡ Urgent task created: %s (priority %s, score %d, id %s).",
		task.Title, task.Priority, score.TotalScore, task.ID), nil
}

func (s *Service) createTask(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "Please describe the task, e.g. `@FlowPilot create task for Q1 review`.", nil
	}
	if s.tasks == nil {
		return noTaskList, nil
	}
	score := s.scorer.Score(text)
	task, err := s.tasks.Create(ctx, tasks.CreateInput{
		Title:      text,
		Priority:   score.PriorityLevel,
		SourceText: text,
		Source:     domain.TaskSourceSlack,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Task created: %s (priority %s, id %s).", task.Title, task.Priority, task.ID), nil
}

func (s *Service) agenda(ctx context.Context, when string) (string, error) {
	day, err := s.resolveDay(when, 0)
	if err != nil {
		return "", err
	}
	list, err := s.calendar.Agenda(ctx, day)
	if err != nil {
		return "", err
	}
	label := day.Format(domain.DateLayout)
	if len(list) == 0 {
		return fmt.Sprintf("📋 Nothing scheduled for %s.", label), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %d meeting(s) on %s:", len(list), label)
	for _, e := range list {
		fmt.Fprintf(&b, "\n• %s %s (%d min)", e.Time, e.Title, e.DurationMinutes)
	}
	return b.String(), nil
}

// resolveDay понимает today, tomorrow и YYYY-MM-DD. Пустое значение — сегодня плюс offset дней.
func (s *Service) resolveDay(when string, offset int) (time.Time, error) {
	today := s.calendar.Today()
	switch w := strings.ToLower(strings.Trim(strings.TrimSpace(when), ".!?")); w {
	case "":
		return today.AddDate(0, 0, offset), nil
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	default:
		return domain.ParseDate(w)
	}
}

func (s *Service) deliver(ctx context.Context, channel, text string) domain.MessageStatus {
	if s.notifier == nil {
		return domain.MessageSimulated
	}
	if err := s.notifier.Notify(ctx, channel, text); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("не удалось отправить сообщение в Slack")
		return domain.MessageFailed
	}
	return domain.MessageSent
}

func (s *Service) record(ctx context.Context, channel, text, action string, status domain.MessageStatus) (domain.SlackMessage, error) {
	msg, err := s.repo.SaveMessage(ctx, domain.SlackMessage{
		Channel: channel,
		Message: text,
		Action:  action,
		Status:  status,
	})
	if err != nil {
		return domain.SlackMessage{}, fmt.Errorf("сохранение сообщения: %w", err)
	}
	if status != domain.MessageFailed {
		s.usage.Track(ctx, domain.CounterSlackMessages)
	}
	return msg, nil
}

func (s *Service) channel(ch string) string {
	if ch = strings.TrimSpace(ch); ch != "" {
		return ch
	}
	return s.defaultChannel
}
