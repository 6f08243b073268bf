package digest

import (
	"fmt"
	"strings"

	"flowpilot/internal/domain"
)

// Format формирует текст сводки для Slack и Telegram.
func Format(sum Summary) string {
	var sections []string

	st := sum.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "📊 FlowPilot daily summary, %s", sum.Day.Format("Mon 2006-01-02"))
	fmt.Fprintf(&b, "\n• Emails processed: %d", st.EmailsProcessed)
	fmt.Fprintf(&b, "\n• Tasks: %d of %d completed (efficiency %.0f%%)", st.TasksCompleted, st.TasksCreated, st.EfficiencyScore)
	fmt.Fprintf(&b, "\n• Meetings scheduled: %d", st.MeetingsScheduled)
	fmt.Fprintf(&b, "\n• Slack messages: %d", st.SlackMessages)
	fmt.Fprintf(&b, "\n• Time saved: %.1f h (ROI %s, automation %s)", st.TimeSavedHours, st.Enterprise.ROIIndicator, st.Enterprise.AutomationRate)
	sections = append(sections, b.String())

	sections = append(sections, agendaSection("🗓 Today", sum.Today))
	sections = append(sections, agendaSection("📅 "+sum.NextDay.Format("Mon 2006-01-02"), sum.Next))

	return strings.Join(sections, "\n\n")
}

func agendaSection(title string, events []domain.CalendarEvent) string {
	if len(events) == 0 {
		return title + ": nothing scheduled"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d meeting(s)", title, len(events))
	for _, e := range events {
		fmt.Fprintf(&b, "\n• %s %s (%d min)", e.Time, e.Title, e.DurationMinutes)
		if len(e.Attendees) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(e.Attendees, ", "))
		}
	}
	return b.String()
}
