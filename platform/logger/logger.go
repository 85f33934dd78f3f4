// Package logger wraps log/slog with the context fields and event helpers the
// scoring services share.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	// JobIDKey holds the asynq task id inside worker handlers.
	JobIDKey contextKey = "job_id"
)

// contextFields lists the context keys copied onto log records, in order.
var contextFields = []contextKey{RequestIDKey, UserIDKey, JobIDKey}

type Logger struct {
	*slog.Logger
}

// New logs to stdout.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter emits debug-level text in development and info-level JSON
// everywhere else.
func NewWithWriter(env string, w io.Writer) *Logger {
	if strings.EqualFold(env, "development") {
		return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns l with the request, user and job ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	var attrs []any
	for _, key := range contextFields {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			attrs = append(attrs, slog.String(string(key), value))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{l.With(attrs...)}
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded", slog.String("client_ip", clientIP), slog.String("path", path))
}

// ScoreChanged records a persisted classification transition.
func (l *Logger) ScoreChanged(leadID string, previous, current string, total, momentum int, trigger string) {
	l.Info("lead_score_changed",
		slog.String("lead_id", leadID),
		slog.String("previous_classification", previous),
		slog.String("classification", current),
		slog.Int("total", total),
		slog.Int("momentum", momentum),
		slog.String("trigger", trigger),
	)
}

// JobSummary records the outcome of a sweep. Runs with failed leads log at
// warn level.
func (l *Logger) JobSummary(job string, processed, updated, errors int, dryRun bool, elapsed time.Duration) {
	level := slog.LevelInfo
	if errors > 0 {
		level = slog.LevelWarn
	}
	l.Log(context.Background(), level, "scoring_job_completed",
		slog.String("job", job),
		slog.Int("processed", processed),
		slog.Int("updated", updated),
		slog.Int("errors", errors),
		slog.Bool("dry_run", dryRun),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()),
	)
}
