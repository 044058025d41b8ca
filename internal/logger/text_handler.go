package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// consoleTimeFormat is the timestamp layout used by the console handler
const consoleTimeFormat = "2006-01-02 15:04:05"

// newTextHandler creates the human-readable console handler. Timestamps are
// rendered in the configured timezone and levels are padded for alignment.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	if tz == nil {
		tz = time.Local
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(consoleTimeFormat))
				}
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					return slog.String(slog.LevelKey, formatLevel(lvl))
				}
			}
			return a
		},
	}
	return slog.NewTextHandler(w, opts)
}

// formatLevel renders a level label padded to maxLevelWidth
func formatLevel(level slog.Level) string {
	var label string
	switch {
	case level <= traceLevelValue:
		label = "TRACE"
	case level < slog.LevelInfo:
		label = "DEBUG"
	case level < slog.LevelWarn:
		label = "INFO"
	case level < slog.LevelError:
		label = "WARN"
	default:
		label = "ERROR"
	}
	if pad := maxLevelWidth - len(label); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	return label
}

// parseSlogLevel converts a LogLevel to slog.Level
func parseSlogLevel(level LogLevel) slog.Level {
	return parseLogLevel(string(level))
}

// NewSlogLogger creates a standalone Logger writing text output to w.
// A nil writer defaults to stdout and a nil timezone to local time.
// It is mainly useful in tests and small tools that do not load configuration.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	lvl := parseSlogLevel(level)
	return &moduleLogger{
		logger:   slog.New(newTextHandler(w, lvl, tz)),
		level:    lvl,
		timezone: tz,
	}
}

// ValidLevel reports whether s names a known log level
func ValidLevel(s string) error {
	switch LogLevel(strings.ToLower(s)) {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	}
	return fmt.Errorf("unknown log level %q", s)
}
