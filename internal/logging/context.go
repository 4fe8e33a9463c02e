package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunDate is the standardized structured logging key for the logical pipeline date.
	FieldRunDate = "run_date"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldProvider is the standardized structured logging key for capability provider names.
	FieldProvider = "provider"
	// FieldTier marks whether a result came from a primary or fallback provider.
	FieldTier = "tier"
	// FieldEventType tags log records for machine filtering.
	FieldEventType = "event_type"
	// FieldErrorCode is the stable taxonomy code attached to classified failures.
	FieldErrorCode = "error_code"
	// FieldSeverity is the error-taxonomy severity attached to classified failures.
	FieldSeverity = "severity"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

type contextKey string

const (
	runDateKey   contextKey = "run_date"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithRunDate annotates context with the logical pipeline date (YYYY-MM-DD).
func WithRunDate(ctx context.Context, date string) context.Context {
	if date == "" {
		return ctx
	}
	return context.WithValue(ctx, runDateKey, date)
}

// RunDateFromContext returns the pipeline date if present.
func RunDateFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runDateKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if date, ok := RunDateFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunDate, date))
	}
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
