package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"flowpilot/internal/domain"
)

var (
	muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	bold     = lipgloss.NewStyle().Bold(true)
	success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	highStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	mediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	box = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func priorityLabel(level domain.PriorityLevel) string {
	label := fmt.Sprintf("%-6s", strings.ToUpper(string(level)))
	switch level {
	case domain.PriorityHigh:
		return highStyle.Render(label)
	case domain.PriorityMedium:
		return mediumStyle.Render(label)
	default:
		return lowStyle.Render(label)
	}
}

func riskStyle(level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "critical", "high":
		return highStyle
	case "medium":
		return mediumStyle
	default:
		return lowStyle
	}
}

func mark(ok bool) string {
	if ok {
		return success.Render("✓")
	}
	return errStyle.Render("✗")
}

func header(w io.Writer, title string) {
	fmt.Fprintln(w, bold.Render(title))
}

func errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}
