package priority

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// deadlineHit — найденное упоминание срока и число дней до него от сегодняшнего дня.
type deadlineHit struct {
	Phrase string
	Days   int
}

var (
	sameDayRegex  = regexp.MustCompile(`\b(?:today|tonight|end\s+of\s+(?:the\s+)?day|eod|cob|close\s+of\s+business|within\s+24\s+hours)\b`)
	tomorrowRegex = regexp.MustCompile(`\btomorrow\b`)
	weekdayRegex  = regexp.MustCompile(`\b(by|on|before|until|this|next)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	thisWeekRegex = regexp.MustCompile(`\b(?:this\s+week|end\s+of\s+(?:the\s+)?week|eow)\b`)
	nextWeekRegex = regexp.MustCompile(`\bnext\s+week\b`)
	isoDateRegex  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDate     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	monthDate     = regexp.MustCompile(`\b(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	wordingRegex  = regexp.MustCompile(`\b(?:deadline|due)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// overdueWindowDays — даты без года, ушедшие в прошлое дальше этого окна, переносятся на следующий год.
const overdueWindowDays = 7

// detectDeadlines ищет упоминания сроков в тексте в нижнем регистре.
// today должен быть усечён до календарного дня.
func detectDeadlines(text string, today time.Time) []deadlineHit {
	var hits []deadlineHit
	for _, m := range sameDayRegex.FindAllString(text, -1) {
		hits = append(hits, deadlineHit{Phrase: m, Days: 0})
	}
	for _, m := range tomorrowRegex.FindAllString(text, -1) {
		hits = append(hits, deadlineHit{Phrase: m, Days: 1})
	}
	for _, m := range weekdayRegex.FindAllStringSubmatch(text, -1) {
		target := weekdays[m[2]]
		days := (int(target) - int(today.Weekday()) + 7) % 7
		if m[1] == "next" && days == 0 {
			days = 7
		}
		hits = append(hits, deadlineHit{Phrase: m[0], Days: days})
	}
	for _, m := range thisWeekRegex.FindAllString(text, -1) {
		days := (int(time.Friday) - int(today.Weekday()) + 7) % 7
		hits = append(hits, deadlineHit{Phrase: m, Days: days})
	}
	for _, m := range nextWeekRegex.FindAllString(text, -1) {
		days := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		hits = append(hits, deadlineHit{Phrase: m, Days: days})
	}
	for _, m := range isoDateRegex.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if date, ok := calendarDate(year, time.Month(month), day); ok {
			hits = append(hits, deadlineHit{Phrase: m[0], Days: daysBetween(today, date)})
		}
	}
	for _, m := range slashDate.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if date, ok := resolveDate(today, time.Month(month), day, m[3]); ok {
			hits = append(hits, deadlineHit{Phrase: m[0], Days: daysBetween(today, date)})
		}
	}
	for _, m := range monthDate.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[2])
		if date, ok := resolveDate(today, months[m[1]], day, m[3]); ok {
			hits = append(hits, deadlineHit{Phrase: m[0], Days: daysBetween(today, date)})
		}
	}
	return hits
}

// nearestDeadline возвращает ближайший к сегодняшнему дню срок; просроченные считаются ближайшими.
func nearestDeadline(hits []deadlineHit) (deadlineHit, bool) {
	if len(hits) == 0 {
		return deadlineHit{}, false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Days < best.Days {
			best = h
		}
	}
	return best, true
}

func (p DeadlinePoints) proximity(days int) int {
	switch {
	case days <= 0:
		return p.SameDay
	case days == 1:
		return p.NextDay
	case days <= 3:
		return p.FewDays
	case days <= 7:
		return p.ThisWeek
	default:
		return p.Later
	}
}

func hasDeadlineWording(text string) bool {
	return wordingRegex.MatchString(text)
}

func resolveDate(today time.Time, month time.Month, day int, rawYear string) (time.Time, bool) {
	if rawYear != "" {
		year, _ := strconv.Atoi(rawYear)
		if len(rawYear) == 2 {
			year += 2000
		}
		return calendarDate(year, month, day)
	}
	date, ok := calendarDate(today.Year(), month, day)
	if !ok {
		return time.Time{}, false
	}
	if daysBetween(today, date) < -overdueWindowDays {
		return calendarDate(today.Year()+1, month, day)
	}
	return date, true
}

// calendarDate отбрасывает несуществующие даты вроде 02/30.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Month() != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func describeDays(days int) string {
	switch {
	case days < 0:
		return "overdue"
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return "due in " + strconv.Itoa(days) + " days"
	}
}

func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}
