package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog. В dev-окружении вывод человекочитаемый.
func NewLogger(appEnv, level string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, level)
}

func newLogger(w io.Writer, appEnv, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl := zerolog.InfoLevel
	if appEnv == "dev" {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		lvl = parsed
	}
	out := w
	if appEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).With().Timestamp().Str("service", "flowpilot").Logger().Level(lvl)
}
