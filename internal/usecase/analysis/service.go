package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/infra/metrics"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

// ErrQueueDisabled возвращается Submit, если очередь не настроена.
var ErrQueueDisabled = errors.New("analysis queue is not configured")

const (
	resultTTL       = 24 * time.Hour
	jobKeyPrefix    = "analysis:job:"
	resultKeyPrefix = "analysis:result:"

	maxDeliveryAttempts = 5
)

// Scorer оценивает приоритет текста письма.
type Scorer interface {
	Score(emailText string) domain.ScoreBreakdown
}

// Service анализирует письма синхронно и через очередь.
type Service struct {
	scorer   Scorer
	drafter  domain.Drafter
	usage    *usage.Service
	audit    *audit.Service
	events   *events.Emitter
	tasks    *tasks.Service
	queue    domain.AnalysisQueue
	cache    domain.Cache
	notifier domain.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithUsage подключает счётчики использования.
func WithUsage(u *usage.Service) Option { return func(s *Service) { s.usage = u } }

// WithAudit подключает журнал.
func WithAudit(a *audit.Service) Option { return func(s *Service) { s.audit = a } }

// WithEvents подключает публикацию событий решений.
func WithEvents(e *events.Emitter) Option { return func(s *Service) { s.events = e } }

// WithTasks сохраняет извлечённую задачу в список задач.
func WithTasks(t *tasks.Service) Option { return func(s *Service) { s.tasks = t } }

// WithQueue включает асинхронный режим.
func WithQueue(q domain.AnalysisQueue, c domain.Cache) Option {
	return func(s *Service) {
		s.queue = q
		s.cache = c
	}
}

// WithNotifier включает уведомления о письмах с высоким приоритетом.
func WithNotifier(n domain.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService создаёт сервис анализа писем.
func NewService(scorer Scorer, drafter domain.Drafter, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		scorer:  scorer,
		drafter: drafter,
		log:     logger.With().Str("component", "analysis").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score оценивает приоритет текста и публикует решение. Пустой текст допустим.
func (s *Service) Score(ctx context.Context, text string) domain.ScoreBreakdown {
	score := s.scorer.Score(text)
	metrics.ObservePriority(string(score.PriorityLevel), score.TotalScore)
	s.audit.Record(ctx, domain.AgentDecision, "priority_scored",
		fmt.Sprintf("%s priority (score %d)", score.PriorityLevel, score.TotalScore))
	s.events.Emit(ctx, domain.DecisionEventPriorityScored, uuid.NewString(), map[string]any{
		"priority_level": string(score.PriorityLevel),
		"total_score":    score.TotalScore,
		"truncated":      score.Truncated,
	})
	return score
}

// Analyze извлекает задачу и срок, оценивает приоритет и готовит ответ.
func (s *Service) Analyze(ctx context.Context, text string) (domain.EmailAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmailAnalysis{}, fmt.Errorf("%w: email text is required", domain.ErrInvalidInput)
	}

	score := s.scorer.Score(text)
	metrics.ObservePriority(string(score.PriorityLevel), score.TotalScore)

	result := domain.EmailAnalysis{
		Task:     ExtractTask(text),
		Deadline: ExtractDeadline(text),
		Priority: score.PriorityLevel,
		Score:    score,
	}

	draft, err := s.drafter.Draft(ctx, domain.DraftRequest{
		EmailText: text,
		Task:      result.Task,
		Deadline:  result.Deadline,
		Priority:  result.Priority,
	})
	if err != nil {
		return domain.EmailAnalysis{}, fmt.Errorf("черновик ответа: %w", err)
	}
	result.DraftReply = draft

	if s.tasks != nil {
		task, err := s.tasks.Create(ctx, tasks.CreateInput{
			Title:      result.Task,
			Deadline:   result.Deadline,
			Priority:   result.Priority,
			SourceText: text,
			Source:     domain.TaskSourceEmail,
			Autonomous: true,
		})
		if err != nil {
			return domain.EmailAnalysis{}, fmt.Errorf("сохранение задачи: %w", err)
		}
		result.TaskID = task.ID
		result.Reminder = task.Reminder
	}

	s.usage.Track(ctx, domain.CounterEmailsProcessed)
	s.audit.Record(ctx, domain.AgentEmail, "email_analyzed",
		fmt.Sprintf("%s priority (score %d): %s", score.PriorityLevel, score.TotalScore, result.Task))
	s.events.Emit(ctx, domain.DecisionEventPriorityScored, uuid.NewString(), map[string]any{
		"priority_level": string(score.PriorityLevel),
		"total_score":    score.TotalScore,
		"task":           result.Task,
		"deadline":       result.Deadline,
	})
	return result, nil
}

// Submit ставит письмо в очередь и возвращает задачу со статусом queued.
func (s *Service) Submit(ctx context.Context, text, notifyTo string, cause domain.AnalysisJobCause) (domain.AnalysisJob, error) {
	if strings.TrimSpace(text) == "" {
		return domain.AnalysisJob{}, fmt.Errorf("%w: email text is required", domain.ErrInvalidInput)
	}
	if s.queue == nil || s.cache == nil {
		return domain.AnalysisJob{}, ErrQueueDisabled
	}
	if cause == "" {
		cause = domain.AnalysisCauseAPI
	}
	job := domain.AnalysisJob{
		ID:          uuid.NewString(),
		EmailText:   text,
		NotifyTo:    notifyTo,
		RequestedAt: s.now().UTC(),
		Cause:       cause,
	}
	if err := s.storeResult(ctx, domain.AnalysisJobResult{JobID: job.ID, Status: domain.JobStatusQueued}); err != nil {
		return domain.AnalysisJob{}, err
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return domain.AnalysisJob{}, fmt.Errorf("постановка в очередь: %w", err)
	}
	s.log.Info().Str("job_id", job.ID).Str("cause", string(cause)).Msg("задача анализа поставлена в очередь")
	return job, nil
}

// ProcessJob обрабатывает задачу ровно один раз в пределах TTL результата.
func (s *Service) ProcessJob(ctx context.Context, job domain.AnalysisJob) error {
	if s.cache == nil {
		return ErrQueueDisabled
	}
	return s.cache.Once(ctx, jobKeyPrefix+job.ID, resultTTL, func() error {
		res := domain.AnalysisJobResult{JobID: job.ID}
		analysis, err := s.Analyze(ctx, job.EmailText)
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			res.Status = domain.JobStatusFailed
			res.Error = err.Error()
		case err != nil:
			metrics.AnalysisJobsTotal.WithLabelValues("retry").Inc()
			return err
		default:
			res.Status = domain.JobStatusDone
			res.Task = analysis.Task
			res.TaskID = analysis.TaskID
			res.Deadline = analysis.Deadline
			res.Priority = analysis.Priority
			res.TotalScore = analysis.Score.TotalScore
			res.DraftReply = analysis.DraftReply
		}
		res.CompletedAt = s.now().UTC()
		if err := s.storeResult(ctx, res); err != nil {
			return err
		}
		metrics.AnalysisJobsTotal.WithLabelValues(res.Status).Inc()
		if res.Priority == domain.PriorityHigh {
			s.notifyHigh(ctx, job, res)
		}
		return nil
	})
}

// JobResult возвращает сохранённый результат задачи.
func (s *Service) JobResult(ctx context.Context, id string) (domain.AnalysisJobResult, error) {
	if s.cache == nil {
		return domain.AnalysisJobResult{}, ErrQueueDisabled
	}
	data, err := s.cache.Get(ctx, resultKeyPrefix+id)
	if errors.Is(err, domain.ErrCacheMiss) {
		return domain.AnalysisJobResult{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.AnalysisJobResult{}, fmt.Errorf("чтение результата: %w", err)
	}
	var res domain.AnalysisJobResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.AnalysisJobResult{}, fmt.Errorf("распаковка результата: %w", err)
	}
	return res, nil
}

// RunWorker читает задачи из очереди до отмены контекста.
func (s *Service) RunWorker(ctx context.Context) error {
	if s.queue == nil {
		return ErrQueueDisabled
	}
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("не удалось получить задачу")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		log := s.log.With().Str("job_id", job.ID).Int("attempt", job.Attempt+1).Logger()
		if err := s.ProcessJob(ctx, job); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.retry(ctx, job, err, log)
			continue
		}
		log.Info().Msg("задача анализа обработана")
	}
}

// retry возвращает задачу в очередь, пока не исчерпан лимит попыток.
// После последней попытки задача помечается как failed.
func (s *Service) retry(ctx context.Context, job domain.AnalysisJob, cause error, log zerolog.Logger) {
	job.Attempt++
	if job.Attempt < maxDeliveryAttempts {
		log.Warn().Err(cause).Msg("задача анализа завершилась ошибкой, повторим позже")
		if err := s.queue.Enqueue(ctx, job); err != nil {
			log.Error().Err(err).Msg("не удалось вернуть задачу в очередь")
		}
		return
	}
	log.Error().Err(cause).Msg("достигнут предел попыток, задача помечена как failed")
	s.audit.Record(ctx, domain.AgentEmail, "analysis_failed",
		fmt.Sprintf("Job %s gave up after %d attempts", job.ID, job.Attempt))
	res := domain.AnalysisJobResult{
		JobID:       job.ID,
		Status:      domain.JobStatusFailed,
		Error:       cause.Error(),
		CompletedAt: s.now().UTC(),
	}
	if err := s.storeResult(ctx, res); err != nil {
		log.Error().Err(err).Msg("не удалось сохранить результат задачи")
	}
	metrics.AnalysisJobsTotal.WithLabelValues(domain.JobStatusFailed).Inc()
}

func (s *Service) storeResult(ctx context.Context, res domain.AnalysisJobResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.cache.Set(ctx, resultKeyPrefix+res.JobID, data, resultTTL); err != nil {
		return fmt.Errorf("сохранение результата: %w", err)
	}
	return nil
}

func (s *Service) notifyHigh(ctx context.Context, job domain.AnalysisJob, res domain.AnalysisJobResult) {
	if s.notifier == nil {
		return
	}
	text := fmt.Sprintf("High priority email (score %d)\nTask: %s\nDeadline: %s", res.TotalScore, res.Task, res.Deadline)
	if err := s.notifier.Notify(ctx, job.NotifyTo, text); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("не удалось отправить уведомление")
		return
	}
	s.audit.Record(ctx, domain.AgentOrchestrator, "high_priority_alert", "Alert sent for job "+job.ID)
}
