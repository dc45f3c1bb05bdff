package vecfs

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/vecfs/internal/journal"
)

// Logger wraps slog.Logger with vecfs-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithID adds an object id field to the logger.
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// LogMount logs a format or mount.
func (l *Logger) LogMount(ctx context.Context, op string, blocks, root, free uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"blocks", blocks,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, op+" completed",
		"blocks", blocks,
		"root", root,
		"free_blocks", free,
	)
}

// LogRecovery logs the journal check done at mount.
func (l *Logger) LogRecovery(ctx context.Context, report journal.Report) {
	if !report.Dirty {
		l.DebugContext(ctx, "journal clean")
		return
	}
	for _, op := range report.Pending {
		l.WarnContext(ctx, "interrupted operation found in journal",
			"op_id", op.ID,
			"description", op.Description,
		)
	}
	l.WarnContext(ctx, "store is dirty; structures may be inconsistent",
		"pending", len(report.Pending),
	)
}

// LogMutation logs a structural mutation.
func (l *Logger) LogMutation(ctx context.Context, op string, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"id", id,
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, query string, indexed bool, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"query", query,
			"indexed", indexed,
			"matches", matches,
		)
	}
}
