package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Field is a typed key/value pair attached to a log entry.
type Field = slog.Attr

// Str returns a string Field.
func Str(key, value string) Field { return slog.String(key, value) }

// Int returns an int Field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 returns an int64 Field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Dur returns a duration Field.
func Dur(key string, value time.Duration) Field { return slog.Duration(key, value) }

// Bool returns a bool Field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Any returns a Field holding an arbitrary value.
func Any(key string, value any) Field { return slog.Any(key, value) }

// Err returns an error Field under the conventional "error" key.
func Err(err error) Field { return slog.Any("error", err) }

// Component tags log entries with the owning component name.
func Component(name string) Field { return slog.String("component", name) }

// Logger is the leveled, structured logging interface for engine components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger that includes the given fields on every entry.
	With(fields ...Field) Logger
}

// LoggerOption configures a logger at construction time.
type LoggerOption func(*options)

type options struct {
	level  Level
	format string
	out    io.Writer
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(o *options) { o.level = level }
}

// WithFormat selects the output format, FormatText or FormatJSON.
func WithFormat(format string) LoggerOption {
	return func(o *options) { o.format = format }
}

// WithOutput directs log output to w.
func WithOutput(w io.Writer) LoggerOption {
	return func(o *options) { o.out = w }
}

type baseLogger struct {
	s *slog.Logger
}

// NewLogger creates a logger with the given options. Defaults: InfoLevel,
// text format, stderr.
func NewLogger(opts ...LoggerOption) Logger {
	o := options{level: InfoLevel, format: FormatText, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	hopts := &slog.HandlerOptions{Level: toSlogLevel(o.level)}
	var h slog.Handler
	if o.format == FormatJSON {
		h = slog.NewJSONHandler(o.out, hopts)
	} else {
		h = slog.NewTextHandler(o.out, hopts)
	}
	return &baseLogger{s: slog.New(h)}
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() Logger {
	return &baseLogger{s: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *baseLogger) log(level slog.Level, msg string, fields []Field) {
	l.s.LogAttrs(context.Background(), level, msg, fields...)
}

func (l *baseLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &baseLogger{s: l.s.With(args...)}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
