package agentsdb

import (
	"context"
	"log/slog"
	"os"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
)

// Logger wraps slog.Logger with agentsdb-specific context.
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

// WithScope adds a layer-scope field to the logger.
func (l *Logger) WithScope(scope layer.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("scope", scope.String()),
	}
}

// WithID adds a chunk id field to the logger.
func (l *Logger) WithID(id format.ChunkID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// LogAppend logs an Append/Edit/Remove-family write.
func (l *Logger) LogAppend(ctx context.Context, op string, scope layer.ID, id format.ChunkID, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"scope", scope.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"scope", scope.String(),
			"id", id,
		)
	}
}

// LogSearch logs a Search call.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogPromote logs a Promote call.
func (l *Logger) LogPromote(ctx context.Context, from, to layer.ID, promoted, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "promote failed",
			"from", from.String(),
			"to", to.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "promote completed",
			"from", from.String(),
			"to", to.String(),
			"promoted", promoted,
			"skipped", skipped,
		)
	}
}

// LogPropose logs a Propose call.
func (l *Logger) LogPropose(ctx context.Context, id format.ChunkID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "propose failed", "error", err)
	} else {
		l.InfoContext(ctx, "propose completed", "proposal_id", id)
	}
}

// LogDecide logs an Accept or Reject call. action is "accept" or "reject".
func (l *Logger) LogDecide(ctx context.Context, action string, id format.ChunkID, err error) {
	if err != nil {
		l.ErrorContext(ctx, action+" failed",
			"proposal_id", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, action+" completed",
			"proposal_id", id,
		)
	}
}

// LogExport logs an Export call.
func (l *Logger) LogExport(ctx context.Context, scope layer.ID, format string, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "export failed",
			"scope", scope.String(),
			"format", format,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "export completed",
			"scope", scope.String(),
			"format", format,
			"chunks", chunks,
		)
	}
}

// LogImport logs an Import call.
func (l *Logger) LogImport(ctx context.Context, scope layer.ID, imported, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "import failed",
			"scope", scope.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "import completed",
			"scope", scope.String(),
			"imported", imported,
			"skipped", skipped,
		)
	}
}
