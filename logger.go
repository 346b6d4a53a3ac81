package rollup

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rollup-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDataSource adds a data source field to the logger.
func (l *Logger) WithDataSource(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("data_source", name),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// LogAdd logs the outcome of one added row.
func (l *Logger) LogAdd(ctx context.Context, kind OutcomeKind, detail string) {
	switch kind {
	case OutcomeAdded:
		l.DebugContext(ctx, "row added")
	case OutcomeParseFailed:
		l.DebugContext(ctx, "row unparseable",
			"error", detail,
		)
	case OutcomeRejected:
		l.WarnContext(ctx, "row rejected",
			"reason", detail,
		)
	}
}

// LogBatch logs a batch of added rows.
func (l *Logger) LogBatch(ctx context.Context, total, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"total", total,
			"failed", failed,
			"added", total-failed,
		)
	} else {
		l.DebugContext(ctx, "batch completed",
			"count", total,
		)
	}
}

// LogPersist logs a snapshot persist operation.
func (l *Logger) LogPersist(ctx context.Context, name string, bytes int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot persisted",
			"snapshot", name,
			"bytes", bytes,
			"duration", d,
		)
	}
}

// LogRestore logs a snapshot restore operation.
func (l *Logger) LogRestore(ctx context.Context, name string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"snapshot", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot restored",
			"snapshot", name,
			"rows", rows,
		)
	}
}

// LogFold logs a fold of another index.
func (l *Logger) LogFold(ctx context.Context, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fold failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fold completed",
			"rows", rows,
		)
	}
}

// LogFilter logs a filter evaluation.
func (l *Logger) LogFilter(ctx context.Context, filter string, matched uint64, accelerated bool) {
	l.DebugContext(ctx, "filter evaluated",
		"filter", filter,
		"matched", matched,
		"accelerated", accelerated,
	)
}
