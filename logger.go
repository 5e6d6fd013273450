package pathgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/pathgo/core"
)

// Logger wraps slog.Logger with pathgo-specific context.
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

// WithIdentity adds an identity field to the logger (useful for tagging operations).
func (l *Logger) WithIdentity(id core.Identity) *Logger {
	return &Logger{
		Logger: l.Logger.With("identity", string(id)),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogFindPath logs a path query.
func (l *Logger) LogFindPath(ctx context.Context, start, target core.Identity, outcome string, degrees int, fromCache bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "find path failed",
			"start", string(start),
			"target", string(target),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "find path completed",
			"start", string(start),
			"target", string(target),
			"outcome", outcome,
			"degrees", degrees,
			"from_cache", fromCache,
		)
	}
}

// LogBatch logs a batch path query.
func (l *Logger) LogBatch(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch query completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch query completed",
			"count", count,
		)
	}
}

// LogMutation logs a graph mutation.
func (l *Logger) LogMutation(ctx context.Context, op string, a, b core.Identity, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mutation failed",
			"op", op,
			"a", string(a),
			"b", string(b),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mutation completed",
			"op", op,
			"a", string(a),
			"b", string(b),
		)
	}
}

// LogEvent logs a replicated mutation event.
func (l *Logger) LogEvent(ctx context.Context, seq uint64, op string, applied bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "event failed",
			"seq", seq,
			"op", op,
			"error", err,
		)
	} else if !applied {
		l.DebugContext(ctx, "stale or duplicate event dropped",
			"seq", seq,
			"op", op,
		)
	} else {
		l.DebugContext(ctx, "event applied",
			"seq", seq,
			"op", op,
		)
	}
}

// LogSuggest logs a connection suggestion query.
func (l *Logger) LogSuggest(ctx context.Context, id core.Identity, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "suggest failed",
			"identity", string(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "suggest completed",
			"identity", string(id),
			"results", resultsFound,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, op string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"bytes", size,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"bytes", size,
		)
	}
}
