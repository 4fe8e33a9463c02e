package pipeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Severity classifies how the pipeline reacts to a failure.
type Severity string

const (
	// SeverityRetryable marks transient failures worth retrying on the same provider.
	SeverityRetryable Severity = "retryable"
	// SeverityFallback marks the current provider unusable for this call.
	SeverityFallback Severity = "fallback"
	// SeverityDegraded marks operations that succeeded below quality target.
	SeverityDegraded Severity = "degraded"
	// SeverityRecoverable marks a failed stage the pipeline should continue past.
	SeverityRecoverable Severity = "recoverable"
	// SeverityCritical marks failures that halt the entire run.
	SeverityCritical Severity = "critical"
)

// Error is the classified failure carried across stage boundaries. Severity
// is a field rather than a distinct type per severity, so propagation is a
// switch on e.Severity instead of a ladder of errors.Is checks.
type Error struct {
	Severity Severity
	Code     string
	Stage    string
	Message  string
	Context  map[string]any
	Cause    error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Stage != "" {
		parts = append(parts, e.Stage)
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "pipeline failure"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Severity, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Severity, detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a classified error.
func New(severity Severity, code, stage, message string) *Error {
	return &Error{Severity: severity, Code: code, Stage: stage, Message: message}
}

// Wrap attaches a severity, code, and stage to an underlying cause. If the
// cause is already classified, its severity wins and only missing fields are
// filled in, so inner classification survives outer wrapping.
func Wrap(severity Severity, code, stage string, cause error) *Error {
	var classified *Error
	if errors.As(cause, &classified) {
		out := *classified
		if out.Code == "" {
			out.Code = code
		}
		if out.Stage == "" {
			out.Stage = stage
		}
		return &out
	}
	return &Error{Severity: severity, Code: code, Stage: stage, Cause: cause}
}

// WithContext attaches structured context and returns the same error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 2)
	}
	e.Context[key] = value
	return e
}

// Retryable builds a RETRYABLE error for a stage operation.
func Retryable(code, stage string, cause error) *Error {
	return Wrap(SeverityRetryable, code, stage, cause)
}

// Fallback builds a FALLBACK error indicating the provider is unusable.
func Fallback(code, stage string, cause error) *Error {
	return Wrap(SeverityFallback, code, stage, cause)
}

// Degraded builds a DEGRADED error for below-target results.
func Degraded(code, stage, message string) *Error {
	return New(SeverityDegraded, code, stage, message)
}

// Recoverable builds a RECOVERABLE error; the pipeline records it and continues.
func Recoverable(code, stage string, cause error) *Error {
	return Wrap(SeverityRecoverable, code, stage, cause)
}

// Critical builds a CRITICAL error; the run halts and the topic is queued.
func Critical(code, stage string, cause error) *Error {
	return Wrap(SeverityCritical, code, stage, cause)
}

// SeverityOf extracts the severity from any error. Unclassified errors
// report CRITICAL: an error nobody labelled is an error nobody planned for.
func SeverityOf(err error) Severity {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Severity
	}
	return SeverityCritical
}

// CodeOf extracts the stable error code, or "UNCLASSIFIED" for plain errors.
func CodeOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) && classified.Code != "" {
		return classified.Code
	}
	return "UNCLASSIFIED"
}

// Classify returns the classified form of err, wrapping plain errors as
// CRITICAL so nothing escapes a stage boundary without a severity.
func Classify(err error, stage string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		if classified.Stage == "" {
			out := *classified
			out.Stage = stage
			return &out
		}
		return classified
	}
	return &Error{Severity: SeverityCritical, Code: "UNCLASSIFIED", Stage: stage, Cause: err}
}

// IsSeverity reports whether err carries exactly the given severity.
func IsSeverity(err error, severity Severity) bool {
	return err != nil && SeverityOf(err) == severity
}
