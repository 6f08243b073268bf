package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flowpilot/internal/adapters/repo"
	"flowpilot/internal/domain"
	"flowpilot/internal/infra/db"
	"flowpilot/internal/usecase/conflict"
)

type eventInput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Status   string `json:"status"`
}

type conflictsOutput struct {
	Date         string             `json:"date"`
	Time         string             `json:"time"`
	HasConflicts bool               `json:"has_conflicts"`
	Conflicts    []conflictOutput   `json:"conflicts"`
	Suggestions  []suggestionOutput `json:"suggestions"`
}

type conflictOutput struct {
	Title    string `json:"title"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
}

type suggestionOutput struct {
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Confidence string `json:"confidence"`
}

func newConflictsCmd(opts *options) *cobra.Command {
	var (
		date, slot, eventsFile, dbPath string
		duration                       int
	)
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Check a time slot against a calendar",
		Long:  "Check a time slot for overlaps. Events come from a JSON file (--events) or a FlowPilot SQLite database (--db).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date == "" {
				date = time.Now().Format(domain.DateLayout)
			}
			q, err := conflict.ParseQuery(date, slot, duration)
			if err != nil {
				return err
			}
			events, err := loadEvents(cmd.Context(), eventsFile, dbPath, q.Date)
			if err != nil {
				return err
			}
			res := conflict.NewDetector(conflict.DefaultConfig()).Detect(q, events)

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, toConflictsOutput(res))
			}
			title := fmt.Sprintf("%s %s", res.Date.Format(domain.DateLayout), res.Time)
			if !res.HasConflicts {
				fmt.Fprintf(out, "%s %s is free\n", mark(true), title)
				return nil
			}
			fmt.Fprintf(out, "%s %s overlaps %d event(s)\n", mark(false), title, res.ConflictCount)
			for _, c := range res.Conflicts {
				fmt.Fprintf(out, "  %s %s %s (%d min)\n", muted.Render("•"), c.Time, bold.Render(c.Title), c.DurationMinutes)
			}
			if len(res.Suggestions) > 0 {
				header(out, "Suggested slots")
				for _, s := range res.Suggestions {
					fmt.Fprintf(out, "  %s %-8s %s\n", s.Time, riskStyle(confidenceTone(s.Confidence)).Render(string(s.Confidence)), muted.Render(s.Reason))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&slot, "time", "", "start time, e.g. \"10:00 AM\" or 14:30")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in minutes (default 60)")
	cmd.Flags().StringVar(&eventsFile, "events", "", "JSON file with events")
	cmd.Flags().StringVar(&dbPath, "db", "", "FlowPilot SQLite database")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func loadEvents(ctx context.Context, eventsFile, dbPath string, day time.Time) ([]domain.CalendarEvent, error) {
	switch {
	case eventsFile != "":
		data, err := os.ReadFile(eventsFile)
		if err != nil {
			return nil, err
		}
		var raw []eventInput
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", eventsFile, err)
		}
		events := make([]domain.CalendarEvent, 0, len(raw))
		for i, in := range raw {
			ev, err := in.toEvent()
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			events = append(events, ev)
		}
		return events, nil
	case dbPath != "":
		if _, err := os.Stat(dbPath); err != nil {
			return nil, err
		}
		sqlDB, err := db.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, err
		}
		defer sqlDB.Close()
		return repo.NewSQLite(sqlDB).ListEventsByDate(ctx, day)
	default:
		return nil, nil
	}
}

func (in eventInput) toEvent() (domain.CalendarEvent, error) {
	day, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	slot, err := domain.ParseTimeSlot(in.Time)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	status := domain.EventStatus(in.Status)
	if status == "" {
		status = domain.EventScheduled
	}
	return domain.CalendarEvent{
		ID:              in.ID,
		Title:           in.Title,
		Date:            day,
		Time:            slot,
		DurationMinutes: in.Duration,
		Status:          status,
	}, nil
}

func toConflictsOutput(res domain.ConflictResult) conflictsOutput {
	out := conflictsOutput{
		Date:         res.Date.Format(domain.DateLayout),
		Time:         res.Time.String(),
		HasConflicts: res.HasConflicts,
		Conflicts:    make([]conflictOutput, 0, len(res.Conflicts)),
		Suggestions:  make([]suggestionOutput, 0, len(res.Suggestions)),
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictOutput{Title: c.Title, Time: c.Time.String(), Duration: c.DurationMinutes, Type: string(c.Type)})
	}
	for _, s := range res.Suggestions {
		out.Suggestions = append(out.Suggestions, suggestionOutput{Time: s.Time.String(), Reason: s.Reason, Confidence: string(s.Confidence)})
	}
	return out
}

func confidenceTone(c domain.Confidence) string {
	switch c {
	case domain.ConfidenceHigh:
		return "low"
	case domain.ConfidenceMedium:
		return "medium"
	default:
		return "high"
	}
}
