package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"flowpilot/internal/adapters/drafter"
	"flowpilot/internal/adapters/notifier"
	"flowpilot/internal/adapters/repo"
	"flowpilot/internal/domain"
	"flowpilot/internal/infra/cache"
	"flowpilot/internal/infra/config"
	"flowpilot/internal/infra/counters"
	"flowpilot/internal/infra/db"
	"flowpilot/internal/infra/events"
	"flowpilot/internal/infra/queue"
	"flowpilot/internal/usecase/analysis"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/calendar"
	"flowpilot/internal/usecase/conflict"
	"flowpilot/internal/usecase/priority"
	"flowpilot/internal/usecase/safety"
	slackuc "flowpilot/internal/usecase/slack"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

const (
	countersKey    = "flowpilot:usage"
	cachePrefix    = "flowpilot:"
	redisPingLimit = 5 * time.Second
)

// Store объединяет репозитории, которые реализуют оба драйвера хранилища.
type Store interface {
	domain.CalendarRepo
	domain.AuditRepo
	domain.MessageRepo
	domain.BusinessMetricRepo
	domain.TaskRepo
	Migrate(ctx context.Context) error
}

// Container держит собранные зависимости процесса.
type Container struct {
	Config config.AppConfig
	Log    zerolog.Logger

	Store    Store
	Redis    *redis.Client
	Queue    domain.AnalysisQueue
	Cache    domain.Cache
	Alerts   domain.Notifier
	Location *time.Location

	Scorer   *priority.Scorer
	Analysis *analysis.Service
	Calendar *calendar.Service
	Usage    *usage.Service
	Audit    *audit.Service
	Tasks    *tasks.Service
	Slack    *slackuc.Service
	Safety   *safety.Scanner

	slack   domain.Notifier
	closers []func() error
}

// New подключает хранилища и брокеры согласно конфигу и собирает сервисы.
// При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (_ *Container, err error) {
	c := &Container{Config: cfg, Log: logger, Safety: safety.NewScanner()}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if c.Location, err = cfg.Location(); err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", cfg.TZ, err)
	}
	if err = c.openStore(ctx); err != nil {
		return nil, err
	}
	if err = c.openRedis(ctx); err != nil {
		return nil, err
	}
	if err = c.openQueue(); err != nil {
		return nil, err
	}
	publisher, err := c.openEvents()
	if err != nil {
		return nil, err
	}
	emitter := events.NewEmitter(publisher, logger)
	c.openNotifiers()

	scoring, err := c.scoringConfig()
	if err != nil {
		return nil, err
	}
	if c.Scorer, err = priority.NewScorer(scoring); err != nil {
		return nil, err
	}
	detector, err := c.detector()
	if err != nil {
		return nil, err
	}

	var usageStore domain.UsageCounters = counters.NewMemory()
	if c.Redis != nil {
		usageStore = counters.NewRedis(c.Redis, countersKey)
	}
	c.Usage = usage.NewService(usageStore, logger)
	c.Audit = audit.NewService(c.Store, logger)

	c.Tasks = tasks.NewService(c.Store, logger,
		tasks.WithUsage(c.Usage),
		tasks.WithAudit(c.Audit),
		tasks.WithEvents(emitter),
	)

	c.Calendar = calendar.NewService(c.Store, detector, logger,
		calendar.WithUsage(c.Usage),
		calendar.WithAudit(c.Audit),
		calendar.WithEvents(emitter),
		calendar.WithLocation(c.Location),
	)

	analysisOpts := []analysis.Option{
		analysis.WithUsage(c.Usage),
		analysis.WithAudit(c.Audit),
		analysis.WithEvents(emitter),
		analysis.WithTasks(c.Tasks),
	}
	if c.Queue != nil && c.Cache != nil {
		analysisOpts = append(analysisOpts, analysis.WithQueue(c.Queue, c.Cache))
	}
	if c.Alerts != nil {
		analysisOpts = append(analysisOpts, analysis.WithNotifier(c.Alerts))
	}
	c.Analysis = analysis.NewService(c.Scorer, c.drafter(), logger, analysisOpts...)

	slackOpts := []slackuc.Option{
		slackuc.WithUsage(c.Usage),
		slackuc.WithAudit(c.Audit),
		slackuc.WithTasks(c.Tasks),
		slackuc.WithDefaultChannel(cfg.Slack.DefaultChannel),
	}
	if n := c.slackNotifier(); n != nil {
		slackOpts = append(slackOpts, slackuc.WithNotifier(n))
	}
	c.Slack = slackuc.NewService(c.Store, c.Calendar, c.Scorer, logger, slackOpts...)
	return c, nil
}

// Close освобождает ресурсы в обратном порядке открытия.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Container) openStore(ctx context.Context) error {
	switch strings.ToLower(c.Config.Storage.Driver) {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, c.Config.Storage.PGDSN)
		if err != nil {
			return fmt.Errorf("подключение к Postgres: %w", err)
		}
		c.onClose(func() error { pool.Close(); return nil })
		c.Store = repo.NewPostgres(pool)
	default:
		sqlDB, err := db.OpenSQLite(ctx, c.Config.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("открытие SQLite: %w", err)
		}
		c.onClose(sqlDB.Close)
		c.Store = repo.NewSQLite(sqlDB)
	}
	if err := c.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	return nil
}

// openRedis подключает Redis, если задан адрес. Без Redis счётчики живут в памяти процесса.
func (c *Container) openRedis(ctx context.Context) error {
	if c.Config.RedisAddr == "" {
		c.Log.Warn().Msg("REDIS_ADDR не задан: счётчики и результаты задач хранятся в памяти")
		c.Cache = cache.NewMemory()
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: c.Config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingLimit)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	c.onClose(client.Close)
	c.Redis = client
	c.Cache = cache.NewRedis(client, cachePrefix)
	return nil
}

func (c *Container) openQueue() error {
	switch strings.ToLower(c.Config.Queues.Backend) {
	case config.QueueRabbitMQ:
		q, err := queue.NewRabbitAnalysisQueue(c.Config.Queues.RabbitMQURL, c.Config.Queues.Analysis)
		if err != nil {
			return fmt.Errorf("очередь RabbitMQ: %w", err)
		}
		c.onClose(q.Close)
		c.Queue = q
	default:
		if c.Redis == nil {
			c.Log.Warn().Msg("очередь анализа отключена: нет Redis")
			return nil
		}
		c.Queue = queue.NewRedisAnalysisQueue(c.Redis, c.Config.Queues.Analysis)
	}
	return nil
}

func (c *Container) openEvents() (domain.EventPublisher, error) {
	fanout := events.Fanout{events.NewStorePublisher(c.Store)}
	if len(c.Config.Kafka.Brokers) == 0 {
		return append(fanout, events.NewLogPublisher(c.Log)), nil
	}
	kp, err := events.NewKafkaPublisher(c.Config.Kafka.Brokers, c.Config.Kafka.Topic)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	c.onClose(kp.Close)
	return append(fanout, kp), nil
}

// openNotifiers собирает канал срочных уведомлений из доступных мессенджеров.
func (c *Container) openNotifiers() {
	var alerts notifier.Multi
	if n := c.slackNotifier(); n != nil {
		alerts = append(alerts, n)
	}
	if c.Config.Telegram.Token != "" {
		tg, err := notifier.NewTelegram(c.Config.Telegram.Token, c.Config.Telegram.ChatID)
		if err != nil {
			c.Log.Error().Err(err).Msg("Telegram недоступен, уведомления только в Slack")
		} else {
			alerts = append(alerts, notifier.WithBreaker("telegram", tg, notifier.DefaultBreakerConfig(), c.Log))
		}
	}
	if len(alerts) > 0 {
		c.Alerts = alerts
	}
}

func (c *Container) slackNotifier() domain.Notifier {
	if c.Config.Slack.Token == "" {
		return nil
	}
	if c.slack == nil {
		s, err := notifier.NewSlack(c.Config.Slack.Token, c.Config.Slack.APIURL, c.Config.Slack.DefaultChannel)
		if err != nil {
			c.Log.Error().Err(err).Msg("Slack недоступен, сообщения будут симулироваться")
			return nil
		}
		c.slack = notifier.WithBreaker("slack", s, notifier.DefaultBreakerConfig(), c.Log)
	}
	return c.slack
}

func (c *Container) scoringConfig() (priority.Config, error) {
	cfg, err := priority.LoadConfig(c.Config.Scoring.RulesFile)
	if err != nil {
		return priority.Config{}, err
	}
	cfg.VIPs = append(cfg.VIPs, c.Config.Scoring.VIPs...)
	return cfg, nil
}

func (c *Container) detector() (*conflict.Detector, error) {
	cfg := conflict.DefaultConfig()
	start, err := domain.ParseTimeSlot(c.Config.Business.DayStart)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_DAY_START: %w", err)
	}
	end, err := domain.ParseTimeSlot(c.Config.Business.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_DAY_END: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: business day end must be after start", domain.ErrInvalidInput)
	}
	cfg.DayStart, cfg.DayEnd = start, end
	return conflict.NewDetector(cfg), nil
}

func (c *Container) drafter() domain.Drafter {
	template := drafter.NewTemplate()
	if c.Config.Anthropic.APIKey == "" {
		return template
	}
	llm, err := drafter.NewAnthropic(c.Config.Anthropic.APIKey, c.Config.Anthropic.Model, c.Config.Anthropic.MaxTokens)
	if err != nil {
		c.Log.Error().Err(err).Msg("Anthropic недоступен, черновики по шаблону")
		return template
	}
	return drafter.WithFallback(llm, template, c.Log)
}
