package conflict

import (
	"errors"
	"testing"
	"time"

	"flowpilot/internal/domain"
)

var testDay = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func event(id, slot string, duration int) domain.CalendarEvent {
	return domain.CalendarEvent{
		ID:              id,
		Title:           "Meeting " + id,
		Date:            testDay,
		Time:            domain.MustTimeSlot(slot),
		DurationMinutes: duration,
		Status:          domain.EventScheduled,
	}
}

func query(slot string, duration int) Query {
	return Query{Date: testDay, Time: domain.MustTimeSlot(slot), DurationMinutes: duration}
}

func TestDetectExactConflict(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("09:00 AM", 0), []domain.CalendarEvent{event("1", "09:00 AM", 60)})
	if !res.HasConflicts || res.ConflictCount != 1 {
		t.Fatalf("ожидали один конфликт, получили %+v", res)
	}
	if res.Conflicts[0].Type != domain.ConflictExact {
		t.Fatalf("ожидали exact, получили %s", res.Conflicts[0].Type)
	}
	if res.DurationMinutes != 60 {
		t.Fatalf("ожидали длительность по умолчанию 60")
	}
}

func TestDetectTouchingBoundaryIsFree(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("10:00 AM", 0), []domain.CalendarEvent{event("1", "09:00 AM", 60)})
	if res.HasConflicts || res.ConflictCount != 0 {
		t.Fatalf("касание границы не конфликт: %+v", res)
	}
	if len(res.Suggestions) != 0 {
		t.Fatalf("без конфликтов не должно быть предложений")
	}
}

func TestDetectOverlapAndOrder(t *testing.T) {
	d := NewDetector(DefaultConfig())
	events := []domain.CalendarEvent{
		event("b", "10:30 AM", 30),
		event("a", "09:30 AM", 60),
		event("c", "11:00 AM", 60),
	}
	res := d.Detect(query("10:00 AM", 60), events)
	if res.ConflictCount != 2 {
		t.Fatalf("ожидали 2 конфликта, получили %d", res.ConflictCount)
	}
	if res.Conflicts[0].ID != "b" || res.Conflicts[1].ID != "a" {
		t.Fatalf("порядок конфликтов должен совпадать со входом: %+v", res.Conflicts)
	}
	for _, c := range res.Conflicts {
		if c.Type != domain.ConflictOverlap {
			t.Fatalf("ожидали overlap для %s", c.ID)
		}
	}
}

func TestDetectIgnoresCancelledAndOtherDays(t *testing.T) {
	d := NewDetector(DefaultConfig())
	cancelled := event("x", "09:00 AM", 60)
	cancelled.Status = domain.EventCancelled
	other := event("y", "09:00 AM", 60)
	other.Date = testDay.AddDate(0, 0, 1)
	completed := event("z", "09:00 AM", 60)
	completed.Status = domain.EventCompleted

	res := d.Detect(query("09:00 AM", 0), []domain.CalendarEvent{cancelled, other, completed})
	if res.ConflictCount != 1 || res.Conflicts[0].ID != "z" {
		t.Fatalf("ожидали конфликт только с завершённым событием: %+v", res.Conflicts)
	}
}

func TestDetectZeroDurationEventUsesDefault(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("09:30 AM", 30), []domain.CalendarEvent{event("1", "09:00 AM", 0)})
	if !res.HasConflicts || res.Conflicts[0].DurationMinutes != 60 {
		t.Fatalf("ожидали конфликт с событием длительностью 60: %+v", res)
	}
}

func TestSuggestionsRankedByDistance(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("09:00 AM", 0), []domain.CalendarEvent{event("1", "09:00 AM", 60)})
	want := []struct {
		slot       string
		confidence domain.Confidence
	}{
		{"10:00 AM", domain.ConfidenceHigh},
		{"11:00 AM", domain.ConfidenceHigh},
		{"12:00 PM", domain.ConfidenceMedium},
	}
	if len(res.Suggestions) != len(want) {
		t.Fatalf("ожидали %d предложения, получили %+v", len(want), res.Suggestions)
	}
	for i, w := range want {
		got := res.Suggestions[i]
		if got.Time != domain.MustTimeSlot(w.slot) || got.Confidence != w.confidence {
			t.Fatalf("предложение %d: ожидали %s/%s, получили %s/%s", i, w.slot, w.confidence, got.Time, got.Confidence)
		}
		if !domain.SameDate(got.Date, testDay) {
			t.Fatalf("предложение должно быть на ту же дату")
		}
	}
	if res.Suggestions[0].Reason != "Free slot 1 hour after the requested time" {
		t.Fatalf("неожиданная причина: %q", res.Suggestions[0].Reason)
	}
}

func TestSuggestionsTieBreakEarlierFirst(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("10:00 AM", 0), []domain.CalendarEvent{event("1", "10:00 AM", 60)})
	if len(res.Suggestions) != 3 {
		t.Fatalf("ожидали 3 предложения")
	}
	order := []string{"09:00 AM", "11:00 AM", "12:00 PM"}
	for i, slot := range order {
		if res.Suggestions[i].Time != domain.MustTimeSlot(slot) {
			t.Fatalf("позиция %d: ожидали %s, получили %s", i, slot, res.Suggestions[i].Time)
		}
	}
	if res.Suggestions[0].Confidence != domain.ConfidenceHigh || res.Suggestions[1].Confidence != domain.ConfidenceHigh {
		t.Fatalf("первые два предложения должны быть high")
	}
	if res.Suggestions[0].Reason != "Free slot 1 hour before the requested time" {
		t.Fatalf("неожиданная причина: %q", res.Suggestions[0].Reason)
	}
}

func TestSuggestionsAreConflictFree(t *testing.T) {
	d := NewDetector(DefaultConfig())
	events := []domain.CalendarEvent{
		event("1", "09:00 AM", 90),
		event("2", "11:30 AM", 60),
		event("3", "02:00 PM", 120),
	}
	res := d.Detect(query("09:30 AM", 90), events)
	if !res.HasConflicts {
		t.Fatalf("ожидали конфликт")
	}
	if len(res.Suggestions) == 0 {
		t.Fatalf("ожидали хотя бы одно предложение")
	}
	for _, s := range res.Suggestions {
		check := d.Detect(Query{Date: testDay, Time: s.Time, DurationMinutes: 90}, events)
		if check.HasConflicts {
			t.Fatalf("предложение %s конфликтует: %+v", s.Time, check.Conflicts)
		}
	}
}

func TestFullyBookedDay(t *testing.T) {
	d := NewDetector(DefaultConfig())
	res := d.Detect(query("10:00 AM", 0), []domain.CalendarEvent{event("all", "12:00 AM", 24*60)})
	if !res.HasConflicts {
		t.Fatalf("ожидали конфликт")
	}
	if len(res.Suggestions) != 0 {
		t.Fatalf("на занятый день не должно быть предложений: %+v", res.Suggestions)
	}
}

func TestNearestSlotIsHighEvenWhenDistant(t *testing.T) {
	d := NewDetector(DefaultConfig())
	events := []domain.CalendarEvent{event("morning", "09:00 AM", 4*60)}
	res := d.Detect(query("09:00 AM", 0), events)
	want := []struct {
		slot       string
		confidence domain.Confidence
	}{
		{"01:00 PM", domain.ConfidenceHigh},
		{"02:00 PM", domain.ConfidenceHigh},
		{"03:00 PM", domain.ConfidenceMedium},
	}
	if len(res.Suggestions) != len(want) {
		t.Fatalf("ожидали %d предложения, получили %+v", len(want), res.Suggestions)
	}
	for i, w := range want {
		got := res.Suggestions[i]
		if got.Time != domain.MustTimeSlot(w.slot) || got.Confidence != w.confidence {
			t.Fatalf("предложение %d: ожидали %s/%s, получили %s/%s", i, w.slot, w.confidence, got.Time, got.Confidence)
		}
	}
	if res.Suggestions[0].Reason != "Free slot 4 hours after the requested time" {
		t.Fatalf("расстояние должно остаться в причине: %q", res.Suggestions[0].Reason)
	}
}

func TestConfidenceTiers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSuggestions = 5
	d := NewDetector(cfg)
	res := d.Detect(query("09:00 AM", 0), []domain.CalendarEvent{event("1", "09:00 AM", 60)})
	want := []domain.Confidence{
		domain.ConfidenceHigh, domain.ConfidenceHigh,
		domain.ConfidenceMedium, domain.ConfidenceMedium,
		domain.ConfidenceLow,
	}
	if len(res.Suggestions) != len(want) {
		t.Fatalf("ожидали %d предложений, получили %d", len(want), len(res.Suggestions))
	}
	for i, w := range want {
		if res.Suggestions[i].Confidence != w {
			t.Fatalf("ранг %d: ожидали %s, получили %s", i, w, res.Suggestions[i].Confidence)
		}
	}
}

func TestDurationIsBounded(t *testing.T) {
	if _, err := ParseQuery("2026-10-19", "09:00 AM", MaxDuration+1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ожидали ErrInvalidInput для длительности больше суток, получили %v", err)
	}
	if _, err := ParseQuery("2026-10-19", "09:00 AM", MaxDuration); err != nil {
		t.Fatalf("сутки допустимы: %v", err)
	}

	d := NewDetector(DefaultConfig())
	huge := event("huge", "08:00 AM", int(^uint(0)>>1))
	res := d.Detect(query("10:00 AM", 60), []domain.CalendarEvent{huge})
	if !res.HasConflicts {
		t.Fatalf("событие огромной длительности должно конфликтовать")
	}
}

func TestCheckRejectsInvalidInput(t *testing.T) {
	d := NewDetector(DefaultConfig())
	cases := [][2]string{
		{"2026-02-30", "09:00 AM"},
		{"", "09:00 AM"},
		{"2026-10-19", "25:00"},
		{"2026-10-19", "soon"},
	}
	for _, c := range cases {
		if _, err := d.Check(c[0], c[1], nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("ожидали ErrInvalidInput для %v, получили %v", c, err)
		}
	}
	res, err := d.Check("2026-10-19", "9 am", nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.HasConflicts || res.ConflictCount != 0 {
		t.Fatalf("пустой календарь не даёт конфликтов")
	}
}

func TestFirstFree(t *testing.T) {
	d := NewDetector(DefaultConfig())
	events := []domain.CalendarEvent{event("1", "09:00 AM", 60), event("2", "10:00 AM", 60)}
	slot, ok := d.FirstFree(testDay, 60, events)
	if !ok || slot != domain.MustTimeSlot("11:00 AM") {
		t.Fatalf("ожидали 11:00, получили %s (%v)", slot, ok)
	}
	if _, ok := d.FirstFree(testDay, 60, []domain.CalendarEvent{event("all", "12:00 AM", 24*60)}); ok {
		t.Fatalf("на занятый день свободных слотов нет")
	}
}
