// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RunIDKey is the context key for the scheduler run ID
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and run_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("request_id", requestID)),
		}
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		newLogger = newLogger.WithRunID(runID)
	}

	return newLogger
}

// WithRunID returns a logger with the scheduler run ID attached.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("run_id", runID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// DispatchOutcome logs the outcome of a single outreach dispatch.
func (l *Logger) DispatchOutcome(dedupKey, leadID, outcome string) {
	l.Info("outreach_dispatch",
		slog.String("dedup_key", dedupKey),
		slog.String("lead_id", leadID),
		slog.String("outcome", outcome),
	)
}

// DispatchError logs a failed outreach dispatch.
func (l *Logger) DispatchError(dedupKey, leadID string, err error) {
	l.Error("outreach_dispatch_failed",
		slog.String("dedup_key", dedupKey),
		slog.String("lead_id", leadID),
		slog.String("error", err.Error()),
	)
}

// RunSummary logs the result of one scheduler run.
func (l *Logger) RunSummary(processed, sent, skipped, failed int) {
	l.Info("outreach_run",
		slog.Int("processed", processed),
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
