package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flowpilot/internal/adapters/httpapi"
	"flowpilot/internal/app"
	"flowpilot/internal/infra/config"
	httpinfra "flowpilot/internal/infra/http"
	applog "flowpilot/internal/infra/log"
	"flowpilot/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogLevel)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать зависимости")
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("api: ошибка освобождения ресурсов")
		}
	}()

	srv := httpinfra.NewServer(logger)
	httpapi.NewHandler(httpapi.Deps{
		Analysis: c.Analysis,
		Calendar: c.Calendar,
		Usage:    c.Usage,
		Audit:    c.Audit,
		Slack:    c.Slack,
		Safety:   c.Safety,
		Tasks:    c.Tasks,
	}, logger).Mount(srv.Router)

	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки сервера")
	}
}
