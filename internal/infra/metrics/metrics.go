package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Количество HTTP запросов к API",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Длительность обработки HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	PriorityScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "priority_score",
		Help:    "Распределение итоговых баллов приоритета",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	PriorityLevelTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "priority_level_total",
		Help: "Количество писем по уровням приоритета",
	}, []string{"level"})

	ConflictChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflict_checks_total",
		Help: "Проверки календаря на конфликты",
	}, []string{"result"})

	AnalysisJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_jobs_total",
		Help: "Обработанные задачи анализа писем",
	}, []string{"status"})

	NotifierSendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_send_errors_total",
		Help: "Ошибки отправки уведомлений",
	}, []string{"notifier"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PriorityScore,
		PriorityLevelTotal,
		ConflictChecksTotal,
		AnalysisJobsTotal,
		NotifierSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObservePriority учитывает результат скоринга письма.
func ObservePriority(level string, score int) {
	PriorityScore.Observe(float64(score))
	PriorityLevelTotal.WithLabelValues(level).Inc()
}

// ObserveConflictCheck учитывает проверку слота.
func ObserveConflictCheck(hasConflicts bool) {
	result := "free"
	if hasConflicts {
		result = "conflict"
	}
	ConflictChecksTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest записывает длительность и статус обработанного запроса.
func ObserveHTTPRequest(route, method string, status int, start time.Time) {
	if route == "" {
		route = "unknown"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}
