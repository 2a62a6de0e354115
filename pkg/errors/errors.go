package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind categorizes sync failures by how callers should react to them
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindUnauthorized    Kind = "unauthorized"
	KindTransient       Kind = "transient"
	KindMalformedRecord Kind = "malformed_record"
	KindUnknown         Kind = "unknown"
)

// SyncError represents a structured error with context
type SyncError struct {
	Kind       Kind
	Message    string
	Cause      error
	StatusCode int
	Field      string
	Suggestion string
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil && e.Kind == KindTransient {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a helpful suggestion to the error
func (e *SyncError) WithSuggestion(suggestion string) *SyncError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SyncError
func New(kind Kind, message string, cause error) *SyncError {
	return &SyncError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// Validation creates a validation error. These never reach the server.
func Validation(field, reason string) *SyncError {
	err := New(KindValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil)
	err.Field = field
	return err
}

// NotFound creates a not found error
func NotFound(resource, id string) *SyncError {
	err := New(KindNotFound, fmt.Sprintf("%s not found: %s", resource, id), nil)
	err.StatusCode = 404
	return err
}

// Forbidden creates a forbidden error
func Forbidden(message string) *SyncError {
	err := New(KindForbidden, message, nil)
	err.StatusCode = 403
	err.Suggestion = "Only the author can change this."
	return err
}

// Unauthorized creates an unauthorized error
func Unauthorized() *SyncError {
	err := New(KindUnauthorized, "not authenticated", nil)
	err.StatusCode = 401
	err.Suggestion = "Run 'feedsync auth login' to sign in again."
	return err
}

// Transient creates a retryable error
func Transient(message string, cause error) *SyncError {
	err := New(KindTransient, message, cause)
	err.Suggestion = "Check your connection and try again."
	return err
}

// MalformedRecord reports a raw record missing an identity-bearing field
func MalformedRecord(kind, field string) *SyncError {
	err := New(KindMalformedRecord, fmt.Sprintf("malformed %s record: missing %s", kind, field), nil)
	err.Field = field
	return err
}

// FromStatus builds an error for a non-2xx HTTP response
func FromStatus(status int, message string) *SyncError {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}

	var err *SyncError
	switch {
	case status == 400 || status == 422:
		err = New(KindValidation, message, nil)
	case status == 401:
		err = Unauthorized()
		err.Message = message
	case status == 403:
		err = Forbidden(message)
	case status == 404:
		err = New(KindNotFound, message, nil)
	case status == 408 || status == 429 || status >= 500:
		err = Transient(message, nil)
	default:
		err = New(KindUnknown, message, nil)
	}
	err.StatusCode = status
	return err
}

// Classify converts any error into a SyncError
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient("request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(KindUnknown, "request cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient("network error", err)
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "connection reset"),
		strings.Contains(errMsg, "EOF"),
		strings.Contains(errMsg, "timeout"):
		return Transient("network error", err)
	default:
		return New(KindUnknown, errMsg, err)
	}
}

// KindOf returns the kind of err, or KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// IsKind reports whether err classifies as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable is true only for transient failures
func IsRetryable(err error) bool {
	return IsKind(err, KindTransient)
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	syncErr := Classify(err)
	var sb strings.Builder

	sb.WriteString("Error")
	if syncErr.Kind != KindUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(syncErr.Kind))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(syncErr.Error())
	sb.WriteString("\n")

	if syncErr.Suggestion != "" {
		sb.WriteString("Suggestion: ")
		sb.WriteString(syncErr.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}
