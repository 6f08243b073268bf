package domain

import "time"

// PriorityLevel описывает дискретный уровень приоритета письма.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "High"
	PriorityMedium PriorityLevel = "Medium"
	PriorityLow    PriorityLevel = "Low"
)

// ScoreBreakdown содержит результат скоринга письма с разбивкой по сигналам.
type ScoreBreakdown struct {
	UrgencyScore        int
	ImportanceScore     int
	DeadlineScore       int
	SenderScore         int
	KeywordScore        int
	TotalScore          int
	PriorityLevel       PriorityLevel
	Reasons             []string
	DecisionExplanation string
	IsLowPriority       bool
	// Truncated сообщает, что текст был обрезан до лимита сканирования.
	Truncated bool
}

// EventStatus описывает состояние события календаря.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Valid проверяет, что статус известен.
func (s EventStatus) Valid() bool {
	switch s {
	case EventScheduled, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// CalendarEvent описывает встречу в календаре.
type CalendarEvent struct {
	ID              string
	Title           string
	Date            time.Time
	Time            TimeSlot
	DurationMinutes int
	Attendees       []string
	Status          EventStatus
	CreatedAt       time.Time
}

// Active возвращает true для событий, которые занимают время в календаре.
func (e CalendarEvent) Active() bool {
	return e.Status != EventCancelled
}

// ConflictType описывает характер пересечения встреч.
type ConflictType string

const (
	ConflictExact   ConflictType = "exact"
	ConflictOverlap ConflictType = "overlap"
)

// ConflictSummary — краткое описание конфликтующей встречи.
type ConflictSummary struct {
	ID              string
	Title           string
	Time            TimeSlot
	DurationMinutes int
	Type            ConflictType
}

// Confidence описывает уверенность в предложенном слоте.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Suggestion — альтернативное время для встречи.
type Suggestion struct {
	Date       time.Time
	Time       TimeSlot
	Reason     string
	Confidence Confidence
}

// ConflictResult содержит результат проверки слота на конфликты.
type ConflictResult struct {
	Date            time.Time
	Time            TimeSlot
	DurationMinutes int
	HasConflicts    bool
	Conflicts       []ConflictSummary
	Suggestions     []Suggestion
	ConflictCount   int
}

// AuditEntry — запись журнала действий агентов.
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	Agent     string
	Action    string
	Details   string
}

// Имена агентов в журнале.
const (
	AgentEmail        = "Email Agent"
	AgentDecision     = "Decision Agent"
	AgentCalendar     = "Calendar Agent"
	AgentTask         = "Task Agent"
	AgentSlack        = "Slack Agent"
	AgentOrchestrator = "Orchestrator"
)

// MessageStatus описывает судьбу исходящего сообщения.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageSimulated MessageStatus = "simulated"
	MessageFailed    MessageStatus = "failed"
)

// SlackMessage — сообщение, отправленное или обработанное Slack-интеграцией.
type SlackMessage struct {
	ID        string
	Channel   string
	Message   string
	Action    string
	Status    MessageStatus
	CreatedAt time.Time
}

// RiskLevel описывает уровень риска одной проверки безопасности.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// SafetyCheck — результат одной категории проверки содержимого.
type SafetyCheck struct {
	Category  string
	Passed    bool
	Details   string
	RiskLevel RiskLevel
	Reason    string
}

// SafetyReport агрегирует проверки безопасности текста.
type SafetyReport struct {
	Checks         []SafetyCheck
	RiskScore      int
	RiskLevel      string
	IsSafe         bool
	ContentScanned int
	PIICount       int
	SensitiveCount int
	DangerousCount int
	ExternalCount  int
	NeedsApproval  bool
}

// NoDeadline — значение срока, когда он не найден в письме.
const NoDeadline = "Not specified"

// EmailAnalysis — результат разбора письма.
type EmailAnalysis struct {
	Task       string
	Deadline   string
	Priority   PriorityLevel
	DraftReply string
	Score      ScoreBreakdown
	// TaskID пуст, если задача не сохранялась.
	TaskID   string
	Reminder string
}

// TaskStatus описывает состояние задачи.
type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskCompleted TaskStatus = "Completed"
)

// Источники задач.
const (
	TaskSourceEmail = "email"
	TaskSourceSlack = "slack"
)

// Task — задача, извлечённая из письма или созданная командой.
type Task struct {
	ID       string
	Title    string
	Deadline string
	Priority PriorityLevel
	Status   TaskStatus
	Reminder string
	// SourceText — исходный текст, по которому задача создана.
	SourceText  string
	Source      string
	Autonomous  bool
	CreatedAt   time.Time
	CompletedAt time.Time
}

// TaskCounts — число задач по статусам.
type TaskCounts struct {
	Total     int
	Pending   int
	Completed int
}
