package blobio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with blobio-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs a stream being opened.
func (l *Logger) LogOpen(ctx context.Context, path, mode string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"mode", mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stream opened",
			"path", path,
			"mode", mode,
		)
	}
}

// LogCommit logs the outcome of an upload.
func (l *Logger) LogCommit(ctx context.Context, path string, blocks int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upload failed",
			"path", path,
			"blocks", blocks,
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upload committed",
			"path", path,
			"blocks", blocks,
			"bytes", bytes,
		)
	}
}

// LogAbort logs an upload abandoned without commit.
func (l *Logger) LogAbort(ctx context.Context, path string, err error) {
	if err != nil {
		l.WarnContext(ctx, "upload abort failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "upload aborted",
			"path", path,
		)
	}
}

// LogRetry logs a transient failure that will be retried after next.
func (l *Logger) LogRetry(ctx context.Context, op string, attempt int, next time.Duration, err error) {
	l.WarnContext(ctx, "transient failure, retrying",
		"op", op,
		"attempt", attempt,
		"backoff", next,
		"error", err,
	)
}

// LogBatch logs a batch operation.
func (l *Logger) LogBatch(ctx context.Context, op string, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"op", op,
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.DebugContext(ctx, "batch completed",
			"op", op,
			"count", count,
		)
	}
}

// LogListProgress logs intermediate listing progress.
func (l *Logger) LogListProgress(ctx context.Context, prefix string, files int) {
	l.InfoContext(ctx, "listing in progress",
		"prefix", prefix,
		"files", files,
	)
}

// LogListDone logs a completed listing.
func (l *Logger) LogListDone(ctx context.Context, prefix string, files, pages int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "listing failed",
			"prefix", prefix,
			"files", files,
			"pages", pages,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "listing completed",
			"prefix", prefix,
			"files", files,
			"pages", pages,
			"elapsed", elapsed,
		)
	}
}
