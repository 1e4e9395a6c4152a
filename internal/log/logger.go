package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Production emits JSON lines for the
// collector; every other environment gets the human console format.
func New(environment string, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(environment, level))

	return zerolog.New(writerFor(environment, os.Stdout)).With().
		Timestamp().
		Str("env", environment).
		Logger()
}

func writerFor(environment string, out io.Writer) io.Writer {
	if environment == "production" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
}

// parseLevel honours an explicit level and otherwise defaults to debug
// outside production.
func parseLevel(environment string, level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err == nil && parsed != zerolog.NoLevel {
		return parsed
	}
	if environment == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
