// Package logging provides structured logging for the recognizer.
// It wraps zerolog to provide a consistent logging interface with support for
// JSON output (pipelines, daemon mode) and human-readable output (terminals).
// Logs always go to stderr by default: stdout carries recognition results.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ContextKey type for context values to avoid collisions.
type ContextKey string

// Context keys copied onto loggers by WithContext.
const (
	TraceIDKey    ContextKey = "trace_id"
	RequestIDKey  ContextKey = "request_id"
	DocumentIDKey ContextKey = "document_id"
)

var contextKeys = []ContextKey{TraceIDKey, RequestIDKey, DocumentIDKey}

// Level represents logging severity levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := zerologLevels[l]; !ok {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return l, nil
}

// parseLevel maps unknown levels to info.
func parseLevel(l Level) zerolog.Level {
	if zl, ok := zerologLevels[l]; ok {
		return zl
	}
	return zerolog.InfoLevel
}

// Config holds logger configuration.
type Config struct {
	Level Level

	// ServiceName and Environment are stamped on every entry.
	ServiceName string
	Environment string

	// JSONFormat selects JSON lines; otherwise the zerolog console writer.
	JSONFormat bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns console logging at info level to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: "penf-ner",
		Environment: "development",
		Output:      os.Stderr,
	}
}

// AutoJSON reports whether w should receive JSON rather than console output.
// Anything that is not an interactive terminal gets JSON.
func AutoJSON(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return true
	}
	return !term.IsTerminal(int(f.Fd()))
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry.
	With(fields ...Field) Logger

	// WithContext returns a Logger carrying the trace, request and document
	// ids found in ctx.
	WithContext(ctx context.Context) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field with the given key and value.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates a Field for an error.
func Err(err error) Field {
	return Field{Key: zerolog.ErrorFieldName, Value: err}
}

// keyvals flattens fields into the alternating slice zerolog's Fields takes.
func keyvals(fields []Field) []interface{} {
	kv := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

type logger struct {
	zl zerolog.Logger
}

// NewLogger creates a Logger. The level applies to this logger only.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	zl := zerolog.New(newWriter(cfg)).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()
	return &logger{zl: zl}
}

func newWriter(cfg *Config) io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.JSONFormat {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    AutoJSON(out),
	}
}

func (l *logger) log(e *zerolog.Event, msg string, fields []Field) {
	if len(fields) > 0 {
		e = e.Fields(keyvals(fields))
	}
	e.Msg(msg)
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(l.zl.Debug(), msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(l.zl.Info(), msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(l.zl.Warn(), msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(l.zl.Error(), msg, fields) }

func (l *logger) With(fields ...Field) Logger {
	return &logger{zl: l.zl.With().Fields(keyvals(fields)).Logger()}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	zc := l.zl.With()
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			zc = zc.Str(string(key), v)
		}
	}
	return &logger{zl: zc.Logger()}
}

var global Logger

// SetGlobal sets the process logger, normally once from the root command.
func SetGlobal(l Logger) {
	global = l
}

// Global returns the process logger. Panics if SetGlobal has not been called.
func Global() Logger {
	if global == nil {
		panic("logging: global logger not initialized, call SetGlobal first")
	}
	return global
}

// MustGlobal returns the process logger, initializing it with defaults if unset.
func MustGlobal() Logger {
	if global == nil {
		global = NewLogger(DefaultConfig())
	}
	return global
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field)               {}
func (nopLogger) Info(string, ...Field)                {}
func (nopLogger) Warn(string, ...Field)                {}
func (nopLogger) Error(string, ...Field)               {}
func (n nopLogger) With(...Field) Logger               { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger {
	return nopLogger{}
}

// ContextWithDocument returns a context whose loggers carry the document id.
func ContextWithDocument(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, DocumentIDKey, documentID)
}
