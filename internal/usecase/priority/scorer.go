package priority

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/rulescan"
)

const (
	categoryUrgency    = "urgency"
	categoryImportance = "importance"
	categorySender     = "sender"
	categoryKeyword    = "keyword"
	categoryRelaxed    = "relaxed"
)

// Scorer оценивает приоритет письма по взвешенным правилам.
// После создания не изменяется и безопасен для конкурентного использования.
type Scorer struct {
	cfg    Config
	engine *rulescan.Engine
	now    func() time.Time
}

// Option настраивает Scorer.
type Option func(*Scorer)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScorer компилирует правила и создаёт скорер.
func NewScorer(cfg Config, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var rules []rulescan.Rule
	add := func(category string, signals []Signal) error {
		for _, sig := range signals {
			r, err := rulescan.Terms(category, sig.Label, sig.Weight, sig.Terms...)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			rules = append(rules, r)
		}
		return nil
	}
	if err := add(categoryUrgency, cfg.Urgency); err != nil {
		return nil, err
	}
	if err := add(categoryImportance, cfg.Importance); err != nil {
		return nil, err
	}
	for _, vip := range cfg.VIPs {
		vip = strings.ToLower(strings.TrimSpace(vip))
		if vip == "" {
			continue
		}
		r, err := rulescan.Terms(categorySender, vip, cfg.VIPWeight, vip)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		rules = append(rules, r)
	}
	if err := add(categorySender, cfg.Roles); err != nil {
		return nil, err
	}
	if err := add(categoryKeyword, cfg.Keywords); err != nil {
		return nil, err
	}
	if len(cfg.Relaxed.Terms) > 0 {
		if err := add(categoryRelaxed, []Signal{cfg.Relaxed}); err != nil {
			return nil, err
		}
	}
	s := &Scorer{cfg: cfg, engine: rulescan.New(rules...), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config возвращает правила, с которыми создан скорер.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score вычисляет приоритет письма. Функция определена для любой строки.
func (s *Scorer) Score(emailText string) domain.ScoreBreakdown {
	text, truncated := truncateRunes(emailText, s.cfg.MaxScanRunes)
	text = strings.ToLower(text)
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	res := s.engine.Scan(text)

	out := domain.ScoreBreakdown{Truncated: truncated}
	var reasons []string

	out.UrgencyScore = capScore(res.Sum(categoryUrgency), s.cfg.UrgencyCap)
	if out.UrgencyScore > 0 {
		reasons = append(reasons, fmt.Sprintf("Urgency indicators: %s (+%d)", strings.Join(res.Labels(categoryUrgency), ", "), out.UrgencyScore))
	}

	out.ImportanceScore = capScore(res.Sum(categoryImportance), s.cfg.ImportanceCap)
	if out.ImportanceScore > 0 {
		reasons = append(reasons, fmt.Sprintf("Importance indicators: %s (+%d)", strings.Join(res.Labels(categoryImportance), ", "), out.ImportanceScore))
	}

	if hit, ok := nearestDeadline(detectDeadlines(text, today)); ok {
		points := s.cfg.Deadline.proximity(hit.Days)
		if hasDeadlineWording(text) {
			points += s.cfg.Deadline.Wording
		}
		out.DeadlineScore = capScore(points, s.cfg.DeadlineCap)
		if out.DeadlineScore > 0 {
			reasons = append(reasons, fmt.Sprintf("Deadline detected: %q, %s (+%d)", normalizePhrase(hit.Phrase), describeDays(hit.Days), out.DeadlineScore))
		}
	}

	out.SenderScore = capScore(res.Sum(categorySender), s.cfg.SenderCap)
	if out.SenderScore > 0 {
		reasons = append(reasons, fmt.Sprintf("Sender authority: %s (+%d)", strings.Join(res.Labels(categorySender), ", "), out.SenderScore))
	}

	out.KeywordScore = res.Sum(categoryKeyword) + res.Sum(categoryRelaxed)
	if out.KeywordScore > 0 {
		reasons = append(reasons, keywordReason(res, out.KeywordScore))
	}

	total := s.cfg.BaseScore + out.UrgencyScore + out.ImportanceScore + out.DeadlineScore + out.SenderScore + out.KeywordScore
	out.TotalScore = clamp(total, 0, 100)
	out.PriorityLevel = s.cfg.Thresholds.Level(out.TotalScore)
	out.IsLowPriority = out.PriorityLevel == domain.PriorityLow
	out.Reasons = reasons
	out.DecisionExplanation = explain(out, relaxedHits(res), res.Sum(categoryRelaxed))
	return out
}

func keywordReason(res rulescan.Result, score int) string {
	var parts []string
	if labels := res.Labels(categoryKeyword); len(labels) > 0 {
		parts = append(parts, "business keywords: "+strings.Join(labels, ", "))
	}
	if hits := relaxedHits(res); len(hits) > 0 {
		parts = append(parts, "relaxed tone: "+strings.Join(hits, ", "))
	}
	return fmt.Sprintf("Keywords: %s (%+d)", strings.Join(parts, "; "), score)
}

func relaxedHits(res rulescan.Result) []string {
	var hits []string
	for _, m := range res.Filter(categoryRelaxed) {
		hits = append(hits, normalizePhrase(m.Hits[0]))
	}
	return hits
}

var categoryNames = []string{"urgency", "importance", "deadline", "sender", "keyword"}

// explain называет уровень и доминирующую категорию. Штраф за спокойный тон
// в причины не попадает и упоминается здесь.
func explain(b domain.ScoreBreakdown, relaxed []string, penalty int) string {
	scores := []int{b.UrgencyScore, b.ImportanceScore, b.DeadlineScore, b.SenderScore, b.KeywordScore}
	best := -1
	for i, v := range scores {
		if v <= 0 {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	var out string
	if best < 0 {
		out = fmt.Sprintf("%s priority (score %d): no priority signals detected.", b.PriorityLevel, b.TotalScore)
	} else {
		out = fmt.Sprintf("%s priority (score %d): driven mainly by %s signals (+%d).", b.PriorityLevel, b.TotalScore, categoryNames[best], scores[best])
	}
	if len(relaxed) > 0 && penalty < 0 {
		out += fmt.Sprintf(" Relaxed tone lowered the score: %s (%d).", strings.Join(relaxed, ", "), penalty)
	}
	return out
}

func truncateRunes(text string, limit int) (string, bool) {
	if limit <= 0 || len(text) <= limit {
		return text, false
	}
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i], true
		}
		count++
	}
	return text, false
}

func capScore(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
