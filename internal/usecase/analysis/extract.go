package analysis

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"flowpilot/internal/domain"
)

const (
	defaultTask     = "Review email and take action"
	maxSentenceRune = 100
)

var actionVerbs = []string{
	"review", "check", "approve", "update", "create", "fix", "submit", "send",
	"confirm", "verify", "complete", "finish", "provide", "prepare", "arrange",
	"schedule", "organize", "delegate", "analyze", "evaluate", "assess",
}

var actionSentence = regexp.MustCompile(`(?i)\b(?:` + strings.Join(actionVerbs, "|") + `)\b[^.!?]*(?:[.!?]|$)`)

// Шаблоны срока проверяются по порядку, побеждает первый совпавший.
var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bby\s+(?:end\s+of\s+)?([a-z]+\s+\d{1,2}\b|\d{1,2}/\d{1,2})`),
	regexp.MustCompile(`\b(?:deadline|due)\s*(?:is|:)?\s*(?:on\s+)?([a-z]+\s+\d{1,2}\b|\d{1,2}/\d{1,2})`),
	regexp.MustCompile(`\bbefore\s+(?:end\s+of\s+)?([a-z]+)`),
	regexp.MustCompile(`\bby\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`\bby\s+(?:this\s+)?(evening|tomorrow|next\s+week|end\s+of\s+(?:the\s+)?(?:day|week))\b`),
	regexp.MustCompile(`\b(?:deadline|due)\s*(?:is|:)?\s*(?:on\s+)?(today|tonight|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
}

// ExtractTask возвращает предложение с первым глаголом действия.
// Без глагола берётся первое предложение, не длиннее 100 символов.
func ExtractTask(text string) string {
	if loc := actionSentence.FindStringIndex(text); loc != nil {
		if task := strings.TrimSpace(text[loc[0]:loc[1]]); task != "" {
			return task
		}
	}
	first := strings.TrimSpace(strings.SplitN(text, ".", 2)[0])
	if first == "" {
		return defaultTask
	}
	return clip(first, maxSentenceRune)
}

// ExtractDeadline находит формулировку срока и приводит её к Title Case.
func ExtractDeadline(text string) string {
	lower := strings.ToLower(text)
	for _, re := range deadlinePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		return titleCase(strings.Join(strings.Fields(m[1]), " "))
	}
	return domain.NoDeadline
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
