package priority

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"flowpilot/internal/domain"
)

// ErrInvalidConfig возвращается при некорректных правилах скоринга.
var ErrInvalidConfig = errors.New("invalid priority config")

// Signal — класс сигнала: набор слов с одним весом.
type Signal struct {
	Label  string   `yaml:"label"`
	Terms  []string `yaml:"terms"`
	Weight int      `yaml:"weight"`
}

// Thresholds задаёт границы уровней приоритета.
type Thresholds struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
}

// Level переводит итоговый балл в уровень приоритета.
func (t Thresholds) Level(score int) domain.PriorityLevel {
	switch {
	case score >= t.High:
		return domain.PriorityHigh
	case score >= t.Medium:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// DeadlinePoints задаёт баллы за близость дедлайна. Просроченный дедлайн считается как SameDay.
type DeadlinePoints struct {
	SameDay  int `yaml:"same_day"`
	NextDay  int `yaml:"next_day"`
	FewDays  int `yaml:"few_days"`
	ThisWeek int `yaml:"this_week"`
	Later    int `yaml:"later"`
	Wording  int `yaml:"wording"`
}

// Config описывает правила скоринга.
type Config struct {
	BaseScore    int        `yaml:"base_score"`
	Thresholds   Thresholds `yaml:"thresholds"`
	MaxScanRunes int        `yaml:"max_scan_runes"`

	Urgency       []Signal `yaml:"urgency"`
	UrgencyCap    int      `yaml:"urgency_cap"`
	Importance    []Signal `yaml:"importance"`
	ImportanceCap int      `yaml:"importance_cap"`

	Deadline    DeadlinePoints `yaml:"deadline"`
	DeadlineCap int            `yaml:"deadline_cap"`

	Roles     []Signal `yaml:"roles"`
	VIPs      []string `yaml:"vips"`
	VIPWeight int      `yaml:"vip_weight"`
	SenderCap int      `yaml:"sender_cap"`

	Keywords []Signal `yaml:"keywords"`
	Relaxed  Signal   `yaml:"relaxed"`
}

// DefaultConfig возвращает правила по умолчанию.
func DefaultConfig() Config {
	return Config{
		BaseScore:    0,
		Thresholds:   Thresholds{High: 70, Medium: 40},
		MaxScanRunes: 20000,
		Urgency: []Signal{
			{Label: "urgent", Terms: []string{"urgent", "urgently"}, Weight: 20},
			{Label: "asap", Terms: []string{"asap", "as soon as possible"}, Weight: 15},
			{Label: "immediately", Terms: []string{"immediately", "right away", "right now"}, Weight: 15},
			{Label: "emergency", Terms: []string{"emergency"}, Weight: 15},
			{Label: "time-sensitive", Terms: []string{"time sensitive", "time-sensitive"}, Weight: 10},
		},
		UrgencyCap: 40,
		Importance: []Signal{
			{Label: "critical", Terms: []string{"critical"}, Weight: 15},
			{Label: "important", Terms: []string{"important"}, Weight: 10},
			{Label: "priority", Terms: []string{"priority", "high priority", "top priority"}, Weight: 10},
			{Label: "action-required", Terms: []string{"action required", "required"}, Weight: 8},
			{Label: "escalation", Terms: []string{"escalate", "escalated", "escalation"}, Weight: 10},
		},
		ImportanceCap: 30,
		Deadline: DeadlinePoints{
			SameDay:  40,
			NextDay:  30,
			FewDays:  20,
			ThisWeek: 10,
			Later:    5,
			Wording:  10,
		},
		DeadlineCap: 50,
		Roles: []Signal{
			{Label: "executive", Terms: []string{"ceo", "cfo", "cto", "coo", "president", "founder", "board"}, Weight: 12},
			{Label: "director", Terms: []string{"director", "vp"}, Weight: 8},
			{Label: "manager", Terms: []string{"manager", "team lead"}, Weight: 5},
		},
		VIPWeight: 10,
		SenderCap: 20,
		Keywords: []Signal{
			{Label: "budget", Terms: []string{"budget"}, Weight: 5},
			{Label: "contract", Terms: []string{"contract", "contracts"}, Weight: 5},
			{Label: "legal", Terms: []string{"legal"}, Weight: 6},
			{Label: "compliance", Terms: []string{"compliance"}, Weight: 5},
			{Label: "security", Terms: []string{"security"}, Weight: 5},
			{Label: "invoice", Terms: []string{"invoice", "invoices"}, Weight: 4},
			{Label: "payment", Terms: []string{"payment", "payments"}, Weight: 4},
			{Label: "client", Terms: []string{"client", "clients", "customer", "customers"}, Weight: 4},
			{Label: "audit", Terms: []string{"audit"}, Weight: 4},
			{Label: "approval", Terms: []string{"approval", "approve"}, Weight: 4},
		},
		Relaxed: Signal{
			Label:  "relaxed",
			Terms:  []string{"when possible", "at your leisure", "whenever", "optional", "no rush"},
			Weight: -15,
		},
	}
}

// Validate проверяет согласованность правил.
func (c Config) Validate() error {
	if c.Thresholds.Medium < 0 || c.Thresholds.High > 100 || c.Thresholds.Medium >= c.Thresholds.High {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= medium < high <= 100, got medium=%d high=%d", ErrInvalidConfig, c.Thresholds.Medium, c.Thresholds.High)
	}
	if c.MaxScanRunes <= 0 {
		return fmt.Errorf("%w: max_scan_runes must be positive", ErrInvalidConfig)
	}
	if c.UrgencyCap < 0 || c.ImportanceCap < 0 || c.DeadlineCap < 0 || c.SenderCap < 0 {
		return fmt.Errorf("%w: caps must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig накладывает YAML-файл правил на DefaultConfig.
// Пустой путь возвращает правила по умолчанию.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("чтение правил %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig разбирает YAML поверх DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
