package drafter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"flowpilot/internal/domain"
)

// Template составляет ответ по шаблону без обращения к внешним сервисам.
type Template struct{}

var _ domain.Drafter = Template{}

// NewTemplate создаёт шаблонный Drafter.
func NewTemplate() Template {
	return Template{}
}

// Draft формирует вежливое подтверждение с учётом приоритета.
func (Template) Draft(_ context.Context, req domain.DraftRequest) (string, error) {
	task := strings.TrimRight(strings.ToLower(strings.TrimSpace(req.Task)), ".!? ")
	if task == "" {
		task = "review your email and take action"
	}
	task = truncate(task, 160)

	handling := "as soon as possible"
	closing := "Please let me know if you need any additional information."
	switch req.Priority {
	case domain.PriorityHigh:
		handling = "immediately"
		closing = "I appreciate your patience and will prioritize this accordingly."
	case domain.PriorityLow:
		handling = "at my earliest convenience"
	}

	var b strings.Builder
	b.WriteString("Thank you for your email.\n\n")
	fmt.Fprintf(&b, "I have received your request to %s.\n\n", task)
	fmt.Fprintf(&b, "I will ensure this is handled %s", handling)
	if d := strings.TrimSpace(req.Deadline); d != "" && d != domain.NoDeadline {
		fmt.Fprintf(&b, " and before the deadline (%s)", d)
	}
	b.WriteString(".\n\n")
	b.WriteString(closing)
	b.WriteString("\n\nBest regards")
	return b.String(), nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
