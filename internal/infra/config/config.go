package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Бэкенды очереди задач анализа.
const (
	QueueRedis    = "redis"
	QueueRabbitMQ = "rabbitmq"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	TZ       string `envconfig:"TZ" default:"UTC"`

	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8000"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Storage struct {
		Driver     string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"flowpilot.db"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queues struct {
		Backend     string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Analysis    string `envconfig:"ANALYSIS_QUEUE_KEY" default:"analysis_jobs"`
		RabbitMQURL string `envconfig:"RABBITMQ_URL"`
	} `envconfig:""`

	Kafka struct {
		Brokers []string `envconfig:"KAFKA_BROKERS"`
		Topic   string   `envconfig:"KAFKA_TOPIC" default:"flowpilot.decisions"`
	} `envconfig:""`

	Slack struct {
		Token          string `envconfig:"SLACK_BOT_TOKEN"`
		APIURL         string `envconfig:"SLACK_API_URL"`
		DefaultChannel string `envconfig:"SLACK_DEFAULT_CHANNEL" default:"#general"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_ALERT_CHAT_ID"`
	} `envconfig:""`

	Anthropic struct {
		APIKey    string `envconfig:"ANTHROPIC_API_KEY"`
		Model     string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`
		MaxTokens int64  `envconfig:"ANTHROPIC_MAX_TOKENS" default:"512"`
	} `envconfig:""`

	Scheduler struct {
		CompleteEventsCron string `envconfig:"COMPLETE_EVENTS_CRON" default:"*/15 * * * *"`
		DailySummaryCron   string `envconfig:"DAILY_SUMMARY_CRON" default:"0 18 * * 1-5"`
	} `envconfig:""`

	Scoring struct {
		RulesFile string   `envconfig:"PRIORITY_RULES_FILE"`
		VIPs      []string `envconfig:"PRIORITY_VIPS"`
	} `envconfig:""`

	Business struct {
		DayStart string `envconfig:"BUSINESS_DAY_START" default:"09:00 AM"`
		DayEnd   string `envconfig:"BUSINESS_DAY_END" default:"05:00 PM"`
	} `envconfig:""`
}

// Load загружает .env (если есть) и конфиг из окружения.
func Load() AppConfig {
	cfg, err := LoadFrom(".env")
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// LoadFrom загружает указанные .env файлы и конфиг из окружения.
// Отсутствующие файлы пропускаются, переменные окружения имеют приоритет.
func LoadFrom(files ...string) (AppConfig, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("чтение %s: %w", f, err)
		}
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров.
func (c AppConfig) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case StoragePostgres:
		if c.Storage.PGDSN == "" {
			return errors.New("PG_DSN is required for STORAGE_DRIVER=postgres")
		}
	case StorageSQLite:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TZ %q: %w", c.TZ, err)
	}
	switch strings.ToLower(c.Queues.Backend) {
	case QueueRedis, "":
	case QueueRabbitMQ:
		if c.Queues.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required for QUEUE_BACKEND=rabbitmq")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queues.Backend)
	}
	return nil
}
