package domain

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound возвращается, если результат задачи анализа не найден.
var ErrJobNotFound = errors.New("analysis job not found")

// AnalysisJobCause описывает источник задачи анализа.
type AnalysisJobCause string

const (
	// AnalysisCauseAPI — письмо передано через HTTP API.
	AnalysisCauseAPI AnalysisJobCause = "api"
	// AnalysisCauseSlack — письмо передано командой Slack.
	AnalysisCauseSlack AnalysisJobCause = "slack"
)

// AnalysisJob содержит письмо для асинхронного анализа.
type AnalysisJob struct {
	ID          string           `json:"job_id"`
	EmailText   string           `json:"email_text"`
	NotifyTo    string           `json:"notify_to,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	Cause       AnalysisJobCause `json:"cause"`
	Attempt     int              `json:"attempt,omitempty"`
}

// AnalysisJobResult хранится в кэше после обработки задачи.
type AnalysisJobResult struct {
	JobID       string        `json:"job_id"`
	Status      string        `json:"status"`
	Task        string        `json:"task,omitempty"`
	TaskID      string        `json:"task_id,omitempty"`
	Deadline    string        `json:"deadline,omitempty"`
	Priority    PriorityLevel `json:"priority,omitempty"`
	TotalScore  int           `json:"total_score"`
	DraftReply  string        `json:"draft_reply,omitempty"`
	Error       string        `json:"error,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Статусы задач анализа.
const (
	JobStatusQueued = "queued"
	JobStatusDone   = "done"
	JobStatusFailed = "failed"
)

// AnalysisQueue описывает очередь задач анализа писем.
type AnalysisQueue interface {
	Enqueue(ctx context.Context, job AnalysisJob) error
	Pop(ctx context.Context) (AnalysisJob, error)
}
