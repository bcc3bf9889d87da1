package obs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "info", "":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("obs: unknown log level %q", s)
}

// Logger is a minimal logging interface for observability.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// NopLogger discards all logs.
type NopLogger struct{}

func (NopLogger) Logf(level Level, format string, args ...interface{}) {}

// Zerolog adapts a zerolog.Logger. Component, when set, is attached to
// every event as the "component" field.
type Zerolog struct {
	L         zerolog.Logger
	Component string
}

// NewZerolog builds a Zerolog writing to w. Format "console" selects the
// human readable writer, anything else writes JSON lines. A nil w means
// stderr.
func NewZerolog(w io.Writer, min Level, format string) Zerolog {
	if w == nil {
		w = os.Stderr
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	l := zerolog.New(w).Level(zlevel(min)).With().Timestamp().Logger()
	return Zerolog{L: l}
}

// With returns a copy tagged with component.
func (z Zerolog) With(component string) Zerolog {
	z.Component = component
	return z
}

func (z Zerolog) Logf(level Level, format string, args ...interface{}) {
	ev := z.L.WithLevel(zlevel(level))
	if ev == nil {
		return
	}
	if z.Component != "" {
		ev = ev.Str("component", z.Component)
	}
	ev.Msgf(format, args...)
}

func zlevel(l Level) zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
