package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUserID    ctxKey = "user_id"
)

// basic global logger, JSON to stdout. Swapped atomically so tests can replace it
// while goroutines log.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelFromEnv()})))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("AMIKA_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the global logger (tests, CLI output).
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the request_id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// WithUserID stores the acting user in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// LoggerFromContext adds request_id and user_id if present. Callers put the user
// in the context with WithUserID rather than adding the key themselves.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if userID, _ := ctx.Value(ctxKeyUserID).(string); userID != "" {
		l = l.With("user_id", userID)
	}
	return l
}
