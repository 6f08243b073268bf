package conflict

import (
	"fmt"
	"sort"
	"time"

	"flowpilot/internal/domain"
)

// Config задаёт параметры поиска конфликтов и альтернативных слотов.
type Config struct {
	// DefaultDuration используется, если длительность запроса или события не задана.
	DefaultDuration int
	DayStart        domain.TimeSlot
	// DayEnd — последнее допустимое начало встречи.
	DayEnd         domain.TimeSlot
	SlotStep       int
	MaxSuggestions int
	HighTier       int
	MediumTier     int
}

// MaxDuration — предельная длительность встречи в минутах.
const MaxDuration = 24 * 60

// DefaultConfig возвращает параметры по умолчанию: рабочий день 09:00–17:00, шаг час.
func DefaultConfig() Config {
	return Config{
		DefaultDuration: 60,
		DayStart:        domain.TimeSlot(9 * 60),
		DayEnd:          domain.TimeSlot(17 * 60),
		SlotStep:        60,
		MaxSuggestions:  3,
		HighTier:        2,
		MediumTier:      2,
	}
}

// Query описывает проверяемый слот.
type Query struct {
	Date            time.Time
	Time            domain.TimeSlot
	DurationMinutes int
}

// Detector ищет пересечения встреч и предлагает свободные слоты.
// Не хранит состояние календаря и безопасен для конкурентного использования.
type Detector struct {
	cfg Config
}

// NewDetector создаёт детектор. Нулевые поля конфигурации заменяются значениями по умолчанию.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = def.DefaultDuration
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = def.SlotStep
	}
	if cfg.DayStart == 0 && cfg.DayEnd == 0 {
		cfg.DayStart, cfg.DayEnd = def.DayStart, def.DayEnd
	}
	if cfg.MaxSuggestions < 0 {
		cfg.MaxSuggestions = 0
	}
	return &Detector{cfg: cfg}
}

// Config возвращает параметры детектора.
func (d *Detector) Config() Config {
	return d.cfg
}

// ParseQuery разбирает дату и время от клиента.
func ParseQuery(date, slot string, duration int) (Query, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return Query{}, err
	}
	t, err := domain.ParseTimeSlot(slot)
	if err != nil {
		return Query{}, err
	}
	if duration < 0 || duration > MaxDuration {
		return Query{}, fmt.Errorf("%w: duration must be between 0 and %d minutes", domain.ErrInvalidInput, MaxDuration)
	}
	return Query{Date: day, Time: t, DurationMinutes: duration}, nil
}

// Check разбирает ввод клиента и проверяет слот длительностью по умолчанию.
func (d *Detector) Check(date, slot string, events []domain.CalendarEvent) (domain.ConflictResult, error) {
	q, err := ParseQuery(date, slot, 0)
	if err != nil {
		return domain.ConflictResult{}, err
	}
	return d.Detect(q, events), nil
}

// Detect проверяет слот на пересечения с активными событиями того же дня.
func (d *Detector) Detect(q Query, events []domain.CalendarEvent) domain.ConflictResult {
	duration := d.duration(q.DurationMinutes)
	day := d.sameDay(q.Date, events)

	res := domain.ConflictResult{
		Date:            domain.DateOf(q.Date),
		Time:            q.Time,
		DurationMinutes: duration,
		Conflicts:       []domain.ConflictSummary{},
		Suggestions:     []domain.Suggestion{},
	}
	start, end := q.Time.Minutes(), q.Time.Minutes()+duration
	for _, e := range day {
		eStart, eEnd := d.interval(e)
		if !overlaps(start, end, eStart, eEnd) {
			continue
		}
		kind := domain.ConflictOverlap
		if eStart == start {
			kind = domain.ConflictExact
		}
		res.Conflicts = append(res.Conflicts, domain.ConflictSummary{
			ID:              e.ID,
			Title:           e.Title,
			Time:            e.Time,
			DurationMinutes: eEnd - eStart,
			Type:            kind,
		})
	}
	res.ConflictCount = len(res.Conflicts)
	res.HasConflicts = res.ConflictCount > 0
	if res.HasConflicts {
		res.Suggestions = d.suggest(res.Date, q.Time, duration, day)
	}
	return res
}

// FirstFree возвращает самый ранний свободный слот рабочего дня.
func (d *Detector) FirstFree(date time.Time, duration int, events []domain.CalendarEvent) (domain.TimeSlot, bool) {
	duration = d.duration(duration)
	day := d.sameDay(date, events)
	for c := d.cfg.DayStart.Minutes(); c <= d.cfg.DayEnd.Minutes(); c += d.cfg.SlotStep {
		if d.free(c, duration, day) {
			return domain.TimeSlot(c), true
		}
	}
	return 0, false
}

func (d *Detector) suggest(date time.Time, requested domain.TimeSlot, duration int, day []domain.CalendarEvent) []domain.Suggestion {
	type candidate struct {
		start    int
		distance int
	}
	var candidates []candidate
	for c := d.cfg.DayStart.Minutes(); c <= d.cfg.DayEnd.Minutes(); c += d.cfg.SlotStep {
		if c == requested.Minutes() || !d.free(c, duration, day) {
			continue
		}
		candidates = append(candidates, candidate{start: c, distance: abs(c - requested.Minutes())})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].start < candidates[j].start
	})
	if len(candidates) > d.cfg.MaxSuggestions {
		candidates = candidates[:d.cfg.MaxSuggestions]
	}
	out := make([]domain.Suggestion, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, domain.Suggestion{
			Date:       date,
			Time:       domain.TimeSlot(c.start),
			Reason:     reason(c.start - requested.Minutes()),
			Confidence: d.tierConfidence(i),
		})
	}
	return out
}

func (d *Detector) free(start, duration int, day []domain.CalendarEvent) bool {
	for _, e := range day {
		eStart, eEnd := d.interval(e)
		if overlaps(start, start+duration, eStart, eEnd) {
			return false
		}
	}
	return true
}

func (d *Detector) sameDay(date time.Time, events []domain.CalendarEvent) []domain.CalendarEvent {
	var out []domain.CalendarEvent
	for _, e := range events {
		if e.Active() && domain.SameDate(e.Date, date) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Detector) interval(e domain.CalendarEvent) (int, int) {
	start := e.Time.Minutes()
	return start, start + d.duration(e.DurationMinutes)
}

func (d *Detector) duration(minutes int) int {
	switch {
	case minutes <= 0:
		return d.cfg.DefaultDuration
	case minutes > MaxDuration:
		return MaxDuration
	}
	return minutes
}

// tierConfidence зависит только от места в выдаче.
func (d *Detector) tierConfidence(rank int) domain.Confidence {
	switch {
	case rank < d.cfg.HighTier:
		return domain.ConfidenceHigh
	case rank < d.cfg.HighTier+d.cfg.MediumTier:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// overlaps проверяет пересечение полуоткрытых интервалов [aStart, aEnd) и [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

func reason(delta int) string {
	direction := "after"
	if delta < 0 {
		direction = "before"
	}
	return fmt.Sprintf("Free slot %s %s the requested time", formatDistance(abs(delta)), direction)
}

func formatDistance(minutes int) string {
	hours, rest := minutes/60, minutes%60
	var out string
	switch {
	case hours == 1:
		out = "1 hour"
	case hours > 1:
		out = fmt.Sprintf("%d hours", hours)
	}
	if rest > 0 {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%d minutes", rest)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
