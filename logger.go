package mnncorrect

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with integration-specific field helpers, so
// every stage logs the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler
// falls back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to
// stderr at the given level.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output. It is the
// default for Integrator.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))
}

// WithBatch tags subsequent records with a batch name.
func (l *Logger) WithBatch(name string) *Logger {
	return &Logger{Logger: l.Logger.With("batch", name)}
}

// LogMergeStep logs the outcome of one merge step.
func (l *Logger) LogMergeStep(ctx context.Context, step MergeStep) {
	l.InfoContext(ctx, "merge step completed",
		"batch", step.Batch,
		"anchors", step.Anchors,
		"fallbacks", step.Fallbacks,
		"pool_size", step.PoolSize,
		"duration", step.Duration,
	)
}
