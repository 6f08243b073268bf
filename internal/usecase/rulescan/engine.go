package rulescan

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule — одно правило сканирования: шаблон, вес и категория.
type Rule struct {
	Category string
	Label    string
	Pattern  *regexp.Regexp
	Weight   int
}

// Match описывает сработавшее правило.
type Match struct {
	Category string
	Label    string
	Weight   int
	Hits     []string
}

// Result содержит совпадения в порядке правил.
type Result struct {
	Matches []Match
}

// Engine применяет упорядоченный набор правил к тексту.
// После создания не изменяется и безопасен для конкурентного использования.
type Engine struct {
	rules []Rule
}

// New создаёт движок из готовых правил.
func New(rules ...Rule) *Engine {
	copied := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pattern == nil {
			continue
		}
		copied = append(copied, r)
	}
	return &Engine{rules: copied}
}

// Rules возвращает копию правил движка.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Scan прогоняет текст через все правила. Каждое правило учитывается один раз,
// сколько бы совпадений ни нашлось.
func (e *Engine) Scan(text string) Result {
	var res Result
	if text == "" {
		return res
	}
	for _, r := range e.rules {
		hits := r.Pattern.FindAllString(text, -1)
		if len(hits) == 0 {
			continue
		}
		res.Matches = append(res.Matches, Match{
			Category: r.Category,
			Label:    r.Label,
			Weight:   r.Weight,
			Hits:     hits,
		})
	}
	return res
}

// Sum возвращает суммарный вес сработавших правил категории.
func (r Result) Sum(category string) int {
	total := 0
	for _, m := range r.Matches {
		if m.Category == category {
			total += m.Weight
		}
	}
	return total
}

// Labels возвращает метки сработавших правил категории в порядке правил.
func (r Result) Labels(category string) []string {
	var labels []string
	for _, m := range r.Matches {
		if m.Category == category {
			labels = append(labels, m.Label)
		}
	}
	return labels
}

// Count возвращает общее число найденных фрагментов в категории.
func (r Result) Count(category string) int {
	total := 0
	for _, m := range r.Matches {
		if m.Category == category {
			total += len(m.Hits)
		}
	}
	return total
}

// Has сообщает, сработало ли хоть одно правило категории.
func (r Result) Has(category string) bool {
	for _, m := range r.Matches {
		if m.Category == category {
			return true
		}
	}
	return false
}

// Filter возвращает совпадения категории.
func (r Result) Filter(category string) []Match {
	var out []Match
	for _, m := range r.Matches {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

// Terms собирает правило по списку слов и фраз без учёта регистра.
// Границы слова ставятся только там, где фраза начинается или заканчивается буквой или цифрой.
func Terms(category, label string, weight int, terms ...string) (Rule, error) {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		parts = append(parts, boundaryQuote(term))
	}
	if len(parts) == 0 {
		return Rule{}, fmt.Errorf("rule %s/%s: no terms", category, label)
	}
	return Pattern(category, label, weight, `(?i)(?:`+strings.Join(parts, "|")+`)`)
}

// MustTerms — вариант Terms для статических наборов правил.
func MustTerms(category, label string, weight int, terms ...string) Rule {
	r, err := Terms(category, label, weight, terms...)
	if err != nil {
		panic(err)
	}
	return r
}

// Pattern собирает правило по регулярному выражению.
func Pattern(category, label string, weight int, expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s/%s: %w", category, label, err)
	}
	return Rule{Category: category, Label: label, Pattern: re, Weight: weight}, nil
}

// MustPattern — вариант Pattern для статических наборов правил.
func MustPattern(category, label string, weight int, expr string) Rule {
	r, err := Pattern(category, label, weight, expr)
	if err != nil {
		panic(err)
	}
	return r
}

func boundaryQuote(term string) string {
	quoted := regexp.QuoteMeta(term)
	quoted = strings.ReplaceAll(quoted, ` `, `\s+`)
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	if isWord(first) {
		quoted = `\b` + quoted
	}
	if isWord(last) {
		quoted += `\b`
	}
	return quoted
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
