// Package log provides structured logging for histoml pipeline runs.
//
// Two surfaces are exposed: a process-wide slog setup whose handler extracts
// cockroachdb/errors stack traces into a dedicated attribute, and a zerolog
// constructor used by the pipeline for per-stage events. The error types in
// pkg/errors implement zerolog.LogObjectMarshaler, so both surfaces emit
// structured error fields rather than formatted strings.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// SetupLogger installs a JSON slog handler on the default logger with the
// given minimum level. Errors logged through ErrAttr get a stacktrace
// attribute when one is available.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// NewPipelineLogger returns a zerolog logger for pipeline stage events.
// Timestamps are included; callers attach the run id and stage via With.
func NewPipelineLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
