package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"flowpilot/internal/app"
	"flowpilot/internal/infra/config"
	applog "flowpilot/internal/infra/log"
	"flowpilot/internal/infra/metrics"
	"flowpilot/internal/usecase/calendar"
	"flowpilot/internal/usecase/digest"
)

const jobTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("component", "scheduler").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось собрать зависимости")
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("scheduler: ошибка освобождения ресурсов")
		}
	}()

	digestOpts := []digest.Option{digest.WithAudit(c.Audit)}
	if c.Alerts != nil {
		digestOpts = append(digestOpts, digest.WithNotifier(c.Alerts, cfg.Slack.DefaultChannel))
	}
	j := &jobs{
		ctx:      ctx,
		log:      logger,
		calendar: c.Calendar,
		digest:   digest.NewService(c.Calendar, c.Usage, logger, digestOpts...),
	}

	cronLog := cronLogger{log: logger}
	sched := cron.New(
		cron.WithLocation(c.Location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := sched.AddFunc(cfg.Scheduler.CompleteEventsCron, j.completeElapsed); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Scheduler.CompleteEventsCron).Msg("scheduler: неверное расписание завершения встреч")
	}
	if _, err := sched.AddFunc(cfg.Scheduler.DailySummaryCron, j.dailySummary); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Scheduler.DailySummaryCron).Msg("scheduler: неверное расписание сводки")
	}

	sched.Start()
	logger.Info().
		Str("complete_events", cfg.Scheduler.CompleteEventsCron).
		Str("daily_summary", cfg.Scheduler.DailySummaryCron).
		Str("tz", c.Location.String()).
		Msg("scheduler: запущен")
	<-ctx.Done()
	logger.Info().Msg("scheduler: остановка")
	<-sched.Stop().Done()
}

type jobs struct {
	ctx      context.Context
	log      zerolog.Logger
	calendar *calendar.Service
	digest   *digest.Service
}

func (j *jobs) completeElapsed() {
	ctx, cancel := context.WithTimeout(j.ctx, jobTimeout)
	defer cancel()
	n, err := j.calendar.CompleteElapsed(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("scheduler: не удалось завершить прошедшие встречи")
		return
	}
	if n > 0 {
		j.log.Info().Int("completed", n).Msg("scheduler: прошедшие встречи завершены")
	}
}

func (j *jobs) dailySummary() {
	ctx, cancel := context.WithTimeout(j.ctx, jobTimeout)
	defer cancel()
	err := j.digest.BuildAndSend(ctx)
	switch {
	case errors.Is(err, digest.ErrNoNotifier):
		j.log.Warn().Msg("scheduler: сводка пропущена, не настроены Slack и Telegram")
	case err != nil:
		j.log.Error().Err(err).Msg("scheduler: не удалось отправить сводку")
	}
}

// cronLogger направляет журнал cron в zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
