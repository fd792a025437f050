package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dikkadev/prettyslog"
)

// LogLevel represents the available logging levels
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
	LogLevelTrace LogLevel = "trace"
)

// LevelTrace sits below slog.LevelDebug and carries per-edge decoder chatter.
const LevelTrace = slog.Level(-8)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText   LogFormat = "text"
	LogFormatPretty LogFormat = "pretty"
)

// parseLogLevel converts a string to a LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "trace":
		return LogLevelTrace, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, debug, or trace)", level)
	}
}

// parseLogFormat validates a handler name.
func parseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return LogFormatText, nil
	case "pretty":
		return LogFormatPretty, nil
	default:
		return "", fmt.Errorf("invalid log format: %s (must be text or pretty)", format)
	}
}

// levelForDebug maps the classic 0..3 debug verbosity onto a LogLevel.
// Values above 3 are treated as 3.
func levelForDebug(debug int) LogLevel {
	switch {
	case debug <= 0:
		return LogLevelWarn
	case debug == 1:
		return LogLevelInfo
	case debug == 2:
		return LogLevelDebug
	default:
		return LogLevelTrace
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// setupLogger creates and configures a slog logger based on log level and format
func setupLogger(w io.Writer, level LogLevel, format LogFormat) *slog.Logger {
	slogLevel := level.slogLevel()

	var handler slog.Handler
	switch format {
	case LogFormatPretty:
		handler = prettyslog.NewPrettyslogHandler("iqcontrol",
			prettyslog.WithLevel(slogLevel),
			prettyslog.WithWriter(w),
		)
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       slogLevel,
			ReplaceAttr: replaceTraceLevel,
		})
	}
	return slog.New(handler)
}

// replaceTraceLevel prints LevelTrace as "TRACE" instead of "DEBUG-4".
func replaceTraceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func logTrace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// discardLogger returns a logger that drops everything (tests, nil loggers).
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
