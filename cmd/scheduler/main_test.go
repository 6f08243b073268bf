package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{log: zerolog.New(&buf)}

	l.Info("wake", "now", "2026-10-19")
	l.Error(errors.New("boom"), "panic", "job", "summary")

	out := buf.String()
	for _, want := range []string{`"message":"cron: wake"`, `"now":"2026-10-19"`, `"error":"boom"`, `"job":"summary"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("ожидали %s в журнале: %s", want, out)
		}
	}
	if !strings.Contains(out, `"level":"debug"`) || !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("неверные уровни: %s", out)
	}
}
