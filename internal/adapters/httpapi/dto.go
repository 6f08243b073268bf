package httpapi

import (
	"time"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/usage"
)

type scoresDTO struct {
	UrgencyScore    int `json:"urgency_score"`
	ImportanceScore int `json:"importance_score"`
	DeadlineScore   int `json:"deadline_score"`
	SenderScore     int `json:"sender_score"`
	KeywordScore    int `json:"keyword_score"`
}

type scoreResponse struct {
	Success             bool      `json:"success"`
	PriorityLevel       string    `json:"priority_level"`
	TotalScore          int       `json:"total_score"`
	Scores              scoresDTO `json:"scores"`
	Reasons             []string  `json:"reasons"`
	DecisionExplanation string    `json:"decision_explanation"`
	IsLowPriority       bool      `json:"is_low_priority"`
	Truncated           bool      `json:"truncated,omitempty"`
}

func toScoreResponse(b domain.ScoreBreakdown) scoreResponse {
	reasons := b.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return scoreResponse{
		Success:       true,
		PriorityLevel: string(b.PriorityLevel),
		TotalScore:    b.TotalScore,
		Scores: scoresDTO{
			UrgencyScore:    b.UrgencyScore,
			ImportanceScore: b.ImportanceScore,
			DeadlineScore:   b.DeadlineScore,
			SenderScore:     b.SenderScore,
			KeywordScore:    b.KeywordScore,
		},
		Reasons:             reasons,
		DecisionExplanation: b.DecisionExplanation,
		IsLowPriority:       b.IsLowPriority,
		Truncated:           b.Truncated,
	}
}

type conflictDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
}

type suggestionDTO struct {
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Confidence string `json:"confidence"`
	Date       string `json:"date"`
}

type conflictResponse struct {
	Success       bool            `json:"success"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	HasConflicts  bool            `json:"has_conflicts"`
	Conflicts     []conflictDTO   `json:"conflicts"`
	Suggestions   []suggestionDTO `json:"suggestions"`
	ConflictCount int             `json:"conflict_count"`
}

func toConflictResponse(res domain.ConflictResult) conflictResponse {
	out := conflictResponse{
		Success:       true,
		Date:          res.Date.Format(domain.DateLayout),
		Time:          res.Time.String(),
		HasConflicts:  res.HasConflicts,
		Conflicts:     make([]conflictDTO, 0, len(res.Conflicts)),
		Suggestions:   make([]suggestionDTO, 0, len(res.Suggestions)),
		ConflictCount: res.ConflictCount,
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictDTO{
			ID:       c.ID,
			Title:    c.Title,
			Time:     c.Time.String(),
			Duration: c.DurationMinutes,
			Type:     string(c.Type),
		})
	}
	for _, s := range res.Suggestions {
		out.Suggestions = append(out.Suggestions, suggestionDTO{
			Time:       s.Time.String(),
			Reason:     s.Reason,
			Confidence: string(s.Confidence),
			Date:       s.Date.Format(domain.DateLayout),
		})
	}
	return out
}

type eventDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Duration  int       `json:"duration"`
	Attendees []string  `json:"attendees"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toEventDTO(e domain.CalendarEvent) eventDTO {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return eventDTO{
		ID:        e.ID,
		Title:     e.Title,
		Date:      e.Date.Format(domain.DateLayout),
		Time:      e.Time.String(),
		Duration:  e.DurationMinutes,
		Attendees: attendees,
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt,
	}
}

type conflictWarningDTO struct {
	HasConflicts  bool            `json:"has_conflicts"`
	ConflictCount int             `json:"conflict_count"`
	Conflicts     []conflictDTO   `json:"conflicts"`
	Suggestions   []suggestionDTO `json:"suggestions"`
}

type auditDTO struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

type messageDTO struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageDTO(m domain.SlackMessage) messageDTO {
	return messageDTO{
		ID:        m.ID,
		Channel:   m.Channel,
		Message:   m.Message,
		Action:    m.Action,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

type checkDTO struct {
	Category  string `json:"category"`
	Passed    bool   `json:"passed"`
	Details   string `json:"details"`
	RiskLevel string `json:"risk_level"`
	Reason    string `json:"reason"`
}

type safetyResponse struct {
	Success        bool       `json:"success"`
	Checks         []checkDTO `json:"checks"`
	RiskScore      int        `json:"risk_score"`
	RiskLevel      string     `json:"risk_level"`
	IsSafe         bool       `json:"is_safe"`
	ContentScanned int        `json:"content_scanned"`
	PIICount       int        `json:"pii_count"`
	SensitiveCount int        `json:"sensitive_count"`
	DangerousCount int        `json:"dangerous_count"`
	ExternalCount  int        `json:"external_count"`
	NeedsApproval  bool       `json:"needs_approval"`
}

func toSafetyResponse(r domain.SafetyReport) safetyResponse {
	out := safetyResponse{
		Success:        true,
		Checks:         make([]checkDTO, 0, len(r.Checks)),
		RiskScore:      r.RiskScore,
		RiskLevel:      r.RiskLevel,
		IsSafe:         r.IsSafe,
		ContentScanned: r.ContentScanned,
		PIICount:       r.PIICount,
		SensitiveCount: r.SensitiveCount,
		DangerousCount: r.DangerousCount,
		ExternalCount:  r.ExternalCount,
		NeedsApproval:  r.NeedsApproval,
	}
	for _, c := range r.Checks {
		out.Checks = append(out.Checks, checkDTO{
			Category:  c.Category,
			Passed:    c.Passed,
			Details:   c.Details,
			RiskLevel: string(c.RiskLevel),
			Reason:    c.Reason,
		})
	}
	return out
}

type dashboardMetrics struct {
	TotalEmailsProcessed   int64   `json:"total_emails_processed"`
	TotalTasksCreated      int64   `json:"total_tasks_created"`
	TotalTasksCompleted    int64   `json:"total_tasks_completed"`
	TotalMeetingsScheduled int64   `json:"total_meetings_scheduled"`
	TotalSlackMessages     int64   `json:"total_slack_messages"`
	AutonomousApprovals    int64   `json:"autonomous_approvals"`
	HumanApprovals         int64   `json:"human_approvals"`
	TimeSavedMinutes       int64   `json:"time_saved_minutes"`
	TimeSavedHours         float64 `json:"time_saved_hours"`
	EfficiencyScore        float64 `json:"efficiency_score"`
	UptimeHours            float64 `json:"uptime_hours"`
}

type enterpriseMetrics struct {
	ROIIndicator        string  `json:"roi_indicator"`
	AutomationRate      string  `json:"automation_rate"`
	TasksPerDay         float64 `json:"tasks_per_day"`
	EmailProcessingRate float64 `json:"email_processing_rate"`
}

type dashboardResponse struct {
	Success           bool              `json:"success"`
	Metrics           dashboardMetrics  `json:"metrics"`
	EnterpriseMetrics enterpriseMetrics `json:"enterprise_metrics"`
}

func toDashboardResponse(d usage.Dashboard) dashboardResponse {
	return dashboardResponse{
		Success: true,
		Metrics: dashboardMetrics{
			TotalEmailsProcessed:   d.EmailsProcessed,
			TotalTasksCreated:      d.TasksCreated,
			TotalTasksCompleted:    d.TasksCompleted,
			TotalMeetingsScheduled: d.MeetingsScheduled,
			TotalSlackMessages:     d.SlackMessages,
			AutonomousApprovals:    d.AutonomousApprovals,
			HumanApprovals:         d.HumanApprovals,
			TimeSavedMinutes:       d.TimeSavedMinutes,
			TimeSavedHours:         d.TimeSavedHours,
			EfficiencyScore:        d.EfficiencyScore,
			UptimeHours:            d.UptimeHours,
		},
		EnterpriseMetrics: enterpriseMetrics{
			ROIIndicator:        d.Enterprise.ROIIndicator,
			AutomationRate:      d.Enterprise.AutomationRate,
			TasksPerDay:         d.Enterprise.TasksPerDay,
			EmailProcessingRate: d.Enterprise.EmailProcessingRate,
		},
	}
}

type taskDTO struct {
	ID          string     `json:"id"`
	Task        string     `json:"task"`
	Deadline    string     `json:"deadline"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Reminder    string     `json:"reminder"`
	Source      string     `json:"source"`
	Autonomous  bool       `json:"autonomous"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toTaskDTO(t domain.Task) taskDTO {
	out := taskDTO{
		ID:         t.ID,
		Task:       t.Title,
		Deadline:   t.Deadline,
		Priority:   string(t.Priority),
		Status:     string(t.Status),
		Reminder:   t.Reminder,
		Source:     t.Source,
		Autonomous: t.Autonomous,
		CreatedAt:  t.CreatedAt,
	}
	if !t.CompletedAt.IsZero() {
		done := t.CompletedAt
		out.CompletedAt = &done
	}
	return out
}

type agentDTO struct {
	Status     string     `json:"status"`
	LastRun    *time.Time `json:"last_run"`
	LastAction string     `json:"last_action,omitempty"`
}

func toAgentDTO(st audit.AgentState) agentDTO {
	out := agentDTO{Status: st.Status, LastAction: st.Action}
	if !st.LastRun.IsZero() {
		last := st.LastRun
		out.LastRun = &last
	}
	return out
}

type warningDTO struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type taskSafetyResponse struct {
	Success   bool         `json:"success"`
	TaskID    string       `json:"task_id"`
	IsSafe    bool         `json:"is_safe"`
	RiskScore int          `json:"risk_score"`
	RiskLevel string       `json:"risk_level"`
	Warnings  []warningDTO `json:"warnings"`
}

// toTaskSafetyResponse превращает непройденные проверки в предупреждения.
func toTaskSafetyResponse(taskID string, r domain.SafetyReport) taskSafetyResponse {
	out := taskSafetyResponse{
		Success:   true,
		TaskID:    taskID,
		IsSafe:    r.IsSafe,
		RiskScore: r.RiskScore,
		RiskLevel: r.RiskLevel,
		Warnings:  make([]warningDTO, 0),
	}
	for _, c := range r.Checks {
		if c.Passed {
			continue
		}
		out.Warnings = append(out.Warnings, warningDTO{
			Type:     c.Category,
			Message:  c.Details,
			Severity: string(c.RiskLevel),
		})
	}
	return out
}
