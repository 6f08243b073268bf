package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/analysis"
	"flowpilot/internal/usecase/audit"
	"flowpilot/internal/usecase/calendar"
	"flowpilot/internal/usecase/safety"
	slackuc "flowpilot/internal/usecase/slack"
	"flowpilot/internal/usecase/tasks"
	"flowpilot/internal/usecase/usage"
)

// Deps — сервисы, которые обслуживает HTTP API.
type Deps struct {
	Analysis *analysis.Service
	Calendar *calendar.Service
	Usage    *usage.Service
	Audit    *audit.Service
	Slack    *slackuc.Service
	Safety   *safety.Scanner
	Tasks    *tasks.Service
}

// Handler реализует HTTP API поверх сервисов.
type Handler struct {
	deps Deps
	log  zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	return &Handler{deps: deps, log: logger.With().Str("component", "httpapi").Logger()}
}

// Mount регистрирует маршруты.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.health)

	r.Post("/priority/score", h.score)
	r.Get("/conflict/detect", h.detectConflicts)

	r.Post("/analyze", h.analyze)
	r.Post("/analyze/async", h.analyzeAsync)
	r.Get("/analyze/jobs/{id}", h.jobResult)

	r.Get("/calendar/events", h.listEvents)
	r.Post("/calendar/event", h.createEvent)
	r.Post("/calendar/event/{id}/cancel", h.cancelEvent)

	r.Get("/metrics/dashboard", h.dashboard)
	r.Post("/metrics/reset", h.resetMetrics)
	r.Post("/metrics/record-email", h.acknowledgeCounter(domain.CounterEmailsProcessed))
	r.Post("/metrics/record-task", h.acknowledgeCounter(domain.CounterTasksCreated))
	r.Post("/metrics/record-task-completed", h.acknowledgeCounter(domain.CounterTasksCompleted))
	r.Post("/metrics/record-completion", h.acknowledgeCounter(domain.CounterTasksCompleted))
	r.Post("/metrics/record-meeting", h.acknowledgeCounter(domain.CounterMeetingsScheduled))
	r.Post("/metrics/record-slack", h.acknowledgeCounter(domain.CounterSlackMessages))
	r.Post("/metrics/record-approval", h.recordApproval)

	r.Get("/tasks", h.listTasks)
	r.Post("/task/{id}/complete", h.completeTask)

	r.Get("/agent/status", h.agentStatus)

	r.Get("/audit", h.listAudit)
	r.Post("/audit/clear", h.clearAudit)

	r.Get("/slack/messages", h.listMessages)
	r.Post("/slack/message", h.sendMessage)
	r.Post("/slack/command", h.slackCommand)

	r.Post("/safety/scan", h.safetyScan)
	r.Post("/safety/check", h.safetyScan)
	r.Get("/safety/check", h.safetyCheckTask)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// fail пишет ответ с ошибкой; внутренние ошибки логируются и не раскрываются клиенту.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("ошибка обработки запроса")
		msg = "internal error"
	}
	writeError(w, status, msg)
}

type emailRequest struct {
	EmailText string `json:"emailText"`
	NotifyTo  string `json:"notify_to"`
}

func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, toScoreResponse(h.deps.Analysis.Score(r.Context(), req.EmailText)))
}

func (h *Handler) detectConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	duration, err := intParam(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be an integer")
		return
	}
	res, err := h.deps.Calendar.CheckConflicts(r.Context(), q.Get("date"), q.Get("time"), duration)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictResponse(res))
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.deps.Analysis.Analyze(r.Context(), req.EmailText)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"task":           res.Task,
		"deadline":       res.Deadline,
		"priority":       string(res.Priority),
		"draftReply":     res.DraftReply,
		"total_score":    res.Score.TotalScore,
		"priority_score": toScoreResponse(res.Score),
		"task_id":        res.TaskID,
		"reminder":       res.Reminder,
	})
}

func (h *Handler) analyzeAsync(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := h.deps.Analysis.Submit(r.Context(), req.EmailText, req.NotifyTo, domain.AnalysisCauseAPI)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"job_id":  job.ID,
		"status":  domain.JobStatusQueued,
	})
}

func (h *Handler) jobResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Analysis.JobResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job": res})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Calendar.List(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]eventDTO, 0, len(list))
	for _, e := range list {
		out = append(out, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": out})
}

type createEventRequest struct {
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Duration  int      `json:"duration"`
	Attendees []string `json:"attendees"`
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ev, warn, err := h.deps.Calendar.Create(r.Context(), calendar.CreateInput{
		Title:           req.Title,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.Duration,
		Attendees:       req.Attendees,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	conflicts := toConflictResponse(warn)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"event":   toEventDTO(ev),
		"conflict_warning": conflictWarningDTO{
			HasConflicts:  conflicts.HasConflicts,
			ConflictCount: conflicts.ConflictCount,
			Conflicts:     conflicts.Conflicts,
			Suggestions:   conflicts.Suggestions,
		},
	})
}

func (h *Handler) cancelEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Calendar.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Usage.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(d))
}

func (h *Handler) resetMetrics(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Usage.Reset(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) recordCounter(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.deps.Usage.Record(r.Context(), name, 1); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// acknowledgeCounter подтверждает событие клиента, не меняя счётчик:
// эти действия уже посчитаны сервисом, который их выполнил.
func (h *Handler) acknowledgeCounter(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "counter": name, "counted": false})
	}
}

func (h *Handler) recordApproval(w http.ResponseWriter, r *http.Request) {
	name := domain.CounterAutonomousApprovals
	switch strings.ToLower(r.URL.Query().Get("type")) {
	case "", "autonomous":
	case "human":
		name = domain.CounterHumanApprovals
	default:
		writeError(w, http.StatusBadRequest, "type must be autonomous or human")
		return
	}
	h.recordCounter(name)(w, r)
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	entries, err := h.deps.Audit.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]auditDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditDTO{ID: e.ID, Timestamp: e.Timestamp, Agent: e.Agent, Action: e.Action, Details: e.Details})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": out})
}

func (h *Handler) clearAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Audit.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type slackRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	msgs, err := h.deps.Slack.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": out})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req slackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := h.deps.Slack.Send(r.Context(), req.Channel, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": toMessageDTO(msg)})
}

func (h *Handler) slackCommand(w http.ResponseWriter, r *http.Request) {
	var req slackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := h.deps.Slack.HandleCommand(r.Context(), req.Channel, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "text": reply})
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	sum, err := h.deps.Tasks.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]taskDTO, 0, len(sum.Tasks))
	for _, t := range sum.Tasks {
		out = append(out, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"total":     sum.Total,
		"pending":   sum.Pending,
		"completed": sum.Completed,
		"tasks":     out,
	})
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.deps.Tasks.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": toTaskDTO(task)})
}

func (h *Handler) agentStatus(w http.ResponseWriter, r *http.Request) {
	states, err := h.deps.Audit.AgentStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	agents := make(map[string]agentDTO, len(states))
	for key, st := range states {
		agents[key] = toAgentDTO(st)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "agents": agents})
}

type safetyRequest struct {
	Content   string `json:"content"`
	EmailText string `json:"emailText"`
}

func (h *Handler) safetyScan(w http.ResponseWriter, r *http.Request) {
	var req safetyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := req.Content
	if text == "" {
		text = req.EmailText
	}
	report := h.deps.Safety.Scan(text)
	h.deps.Audit.Record(r.Context(), domain.AgentDecision, "safety_scan",
		"Risk "+report.RiskLevel+" ("+strconv.Itoa(report.RiskScore)+")")
	writeJSON(w, http.StatusOK, toSafetyResponse(report))
}

// safetyCheckTask проверяет исходный текст сохранённой задачи.
func (h *Handler) safetyCheckTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("task_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	task, err := h.deps.Tasks.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text := task.SourceText
	if strings.TrimSpace(text) == "" {
		text = task.Title
	}
	report := h.deps.Safety.Scan(text)
	h.deps.Audit.Record(r.Context(), domain.AgentDecision, "safety_check",
		"Task "+task.ID+": risk "+report.RiskLevel+" ("+strconv.Itoa(report.RiskScore)+")")
	writeJSON(w, http.StatusOK, toTaskSafetyResponse(task.ID, report))
}

func intParam(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return strconv.Atoi(strings.TrimSpace(raw))
}
