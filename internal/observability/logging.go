// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logger used throughout the application.
var Logger *slog.Logger

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys picked up by the context-aware handler.
const (
	RequestIDKey LogContextKey = "request_id"
	UserIDKey    LogContextKey = "user_id"
	TraceIDKey   LogContextKey = "trace_id"
)

// ctxHandler stamps request, user and trace ids from the context onto
// every record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		for _, key := range []LogContextKey{RequestIDKey, TraceIDKey} {
			if v, ok := ctx.Value(key).(string); ok {
				r.AddAttrs(slog.String(string(key), v))
			}
		}
		if uid, ok := ctx.Value(UserIDKey).(uint); ok {
			r.AddAttrs(slog.Uint64(string(UserIDKey), uint64(uid)))
		}
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the context wrapper when attributes are bound.
func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the context wrapper when a group is opened.
func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	ConfigureLogger(os.Getenv("APP_ENV"), slog.LevelInfo)
}

// ParseLevel maps LOG_LEVEL values to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ConfigureLogger rebuilds Logger for the given environment: JSON in
// production, text everywhere else.
func ConfigureLogger(env string, level slog.Level) {
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	Logger = slog.New(&ctxHandler{handler})
	slog.SetDefault(Logger)
}

// WithUserID returns a context whose log records carry the user id.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// Async operations run after the response was sent, so their records are
// the only trace of the outcome.

func LogAsyncOperationStart(ctx context.Context, operation string, fields map[string]interface{}) {
	logOperation(ctx, slog.LevelInfo, "async operation started", operation, "async_start", nil, fields)
}

func LogAsyncOperationEnd(ctx context.Context, operation string, fields map[string]interface{}) {
	logOperation(ctx, slog.LevelInfo, "async operation completed", operation, "async_end", nil, fields)
}

func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	logOperation(ctx, slog.LevelError, "async operation failed", operation, "async_error", err, fields)
}

// LogPartialFailure records a follow-up step that failed after the
// authoritative write had already committed.
func LogPartialFailure(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	logOperation(ctx, slog.LevelWarn, "partial failure", operation, "partial_failure", err, fields)
}

func logOperation(ctx context.Context, level slog.Level, msg, operation, kind string, err error, fields map[string]interface{}) {
	if !Logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+3)
	attrs = append(attrs, slog.String("operation", operation), slog.String("type", kind))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.LogAttrs(ctx, level, msg, attrs...)
}
