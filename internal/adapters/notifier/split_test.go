package notifier

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	parts := SplitMessage(builder.String(), telegramLimit)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > telegramLimit {
			t.Fatalf("part %d exceeds limit: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("unexpected content in first part")
	}
	if !strings.HasPrefix(parts[1], "b") || !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatalf("unexpected second part")
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", 25), 10)
	if len(parts) != 3 || parts[2] != "xxxxx" {
		t.Fatalf("unexpected parts: %q", parts)
	}
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	if parts := SplitMessage("  hello \n", slackLimit); len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("unexpected parts: %q", parts)
	}
	if parts := SplitMessage(" \n ", slackLimit); parts != nil {
		t.Fatalf("expected nil for blank text")
	}
}
