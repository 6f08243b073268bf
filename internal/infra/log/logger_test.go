package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerJSONInProd(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", "")
	logger.Debug().Msg("скрыто")
	logger.Info().Str("k", "v").Msg("привет")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("ожидали одну строку, получили %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("ожидали JSON: %v", err)
	}
	if entry["service"] != "flowpilot" || entry["k"] != "v" {
		t.Fatalf("неожиданные поля: %v", entry)
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "dev", "warn")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("ожидали уровень warn, получили %s", logger.GetLevel())
	}
	logger = newLogger(&buf, "dev", "")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("в dev ожидали debug")
	}
}
