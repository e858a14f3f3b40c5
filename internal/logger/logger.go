// Package logger provides structured logging using zerolog.
// It sets up a JSON logger with service-level context and provides
// trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
// An unknown level falls back to info.
func Init(service, level string) zerolog.Logger {
	return New(os.Stdout, service, level)
}

// New is Init with an explicit writer.
func New(w io.Writer, service, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	// Set as global so zerolog/log also uses structured output
	log.Logger = logger

	return logger
}

// ParseLevel parses a level name case-insensitively. Invalid or empty
// names map to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a token and timestamp.
// Format: "{token}-{unixNano}".
func GenerateTraceID(token string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", token, ts.UnixNano())
}

// FromContext returns l with the context's trace ID attached, if any.
func FromContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	tid := TraceID(ctx)
	if tid == "" {
		return l
	}
	return l.With().Str("trace_id", tid).Logger()
}
