package vecspace

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecspace-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithNamespace adds a namespace field to the logger.
func (l *Logger) WithNamespace(ns string) *Logger {
	return &Logger{
		Logger: l.Logger.With("namespace", ns),
	}
}

// LogUpsert logs an upsert batch.
func (l *Logger) LogUpsert(ctx context.Context, ns string, count, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "upsert failed",
			"namespace", ns,
			"total", count,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "upsert completed with failures",
			"namespace", ns,
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	default:
		l.DebugContext(ctx, "upsert completed",
			"namespace", ns,
			"count", count,
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, ns string, topK, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"namespace", ns,
			"top_k", topK,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"namespace", ns,
			"top_k", topK,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, ns string, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"namespace", ns,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"namespace", ns,
			"removed", removed,
		)
	}
}

// LogUpdate logs an update operation.
func (l *Logger) LogUpdate(ctx context.Context, ns, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"namespace", ns,
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"namespace", ns,
			"id", id,
		)
	}
}

// LogNamespace logs the creation or removal of a namespace.
func (l *Logger) LogNamespace(ctx context.Context, ns, event string) {
	l.InfoContext(ctx, "namespace "+event,
		"namespace", ns,
	)
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, id string, namespaces int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"snapshot", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"snapshot", id,
			"namespaces", namespaces,
		)
	}
}

// LogReplay logs a change-log replay.
func (l *Logger) LogReplay(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "change log replay failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "change log replay completed",
			"entries_replayed", entriesReplayed,
		)
	}
}
