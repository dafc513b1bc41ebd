package logging

import (
	"context"
	"io"
	"log/slog"
)

// SlogLogger implements Logger on top of *slog.Logger. Calls go through the
// context-aware slog methods so a handler can pick up request-scoped values.
type SlogLogger struct {
	inner *slog.Logger
}

// NewSlogLogger wraps an already-configured slog logger.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{inner: l}
}

// NewJSONLogger builds a SlogLogger emitting one JSON record per line to w,
// filtered at the given minimum level. This is the logger the CLI runs with.
func NewJSONLogger(w io.Writer, level slog.Leveler) *SlogLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(h))
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.inner.DebugContext(ctx, msg, args...)
}

func (l *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.inner.InfoContext(ctx, msg, args...)
}

func (l *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.inner.WarnContext(ctx, msg, args...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.inner.ErrorContext(ctx, msg, args...)
}

// With returns a child logger whose records all carry the given key/value
// pairs, mirroring slog.Logger.With.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{inner: l.inner.With(args...)}
}
