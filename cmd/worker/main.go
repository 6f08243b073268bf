package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"flowpilot/internal/app"
	"flowpilot/internal/infra/config"
	applog "flowpilot/internal/infra/log"
	"flowpilot/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("component", "worker").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось собрать зависимости")
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("worker: ошибка освобождения ресурсов")
		}
	}()
	if c.Queue == nil {
		logger.Fatal().Msg("worker: очередь анализа не настроена (REDIS_ADDR или RABBITMQ_URL)")
	}

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("worker: запуск обработки очереди")
	if err := c.Analysis.RunWorker(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: остановлен с ошибкой")
		return
	}
	logger.Info().Msg("worker: остановлен")
}
