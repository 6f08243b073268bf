package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInput возвращается при некорректных датах и времени от клиента.
var ErrInvalidInput = errors.New("invalid input")

// DateLayout — формат календарной даты во всех интерфейсах.
const DateLayout = "2006-01-02"

// TimeSlot — время суток в минутах от полуночи.
type TimeSlot int

var slotRegex = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s*m\.?$|^(\d{1,2}):(\d{2})$`)

// ParseTimeSlot разбирает "09:00 AM", "9 am", "9:30pm" и "14:30".
func ParseTimeSlot(raw string) (TimeSlot, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	m := slotRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, raw)
	}
	if m[4] != "" {
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		if hour > 23 || minute > 59 {
			return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidInput, raw)
		}
		return TimeSlot(hour*60 + minute), nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, fmt.Errorf("%w: time %q out of range", ErrInvalidInput, raw)
	}
	hour %= 12
	if m[3] == "p" {
		hour += 12
	}
	return TimeSlot(hour*60 + minute), nil
}

// MustTimeSlot разбирает время и паникует при ошибке. Только для констант и тестов.
func MustTimeSlot(raw string) TimeSlot {
	slot, err := ParseTimeSlot(raw)
	if err != nil {
		panic(err)
	}
	return slot
}

// Minutes возвращает количество минут от полуночи.
func (t TimeSlot) Minutes() int {
	return int(t)
}

// String форматирует слот как "09:00 AM".
func (t TimeSlot) String() string {
	minutes := int(t) % (24 * 60)
	if minutes < 0 {
		minutes += 24 * 60
	}
	hour, minute := minutes/60, minutes%60
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour12, minute, suffix)
}

// MarshalText реализует encoding.TextMarshaler.
func (t TimeSlot) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (t *TimeSlot) UnmarshalText(data []byte) error {
	slot, err := ParseTimeSlot(string(data))
	if err != nil {
		return err
	}
	*t = slot
	return nil
}

// ParseDate разбирает дату в формате YYYY-MM-DD (UTC, полночь).
func ParseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	date, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, raw)
	}
	return date, nil
}

// DateOf отбрасывает время суток, оставляя календарную дату в UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate сравнивает календарные даты без учёта времени.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
