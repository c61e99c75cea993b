// Package apperrors classifies the failures that can occur while running a step.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrAdapter          = errors.New("adapter error")
	ErrJobFailed        = errors.New("job failed")
	ErrEmptyResult      = errors.New("empty result")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "profile_url")
	Key      string // For configuration errors (e.g., "BRIGHT_DATA_API_TOKEN")
	Op       string // Operation that failed (e.g., "brightdata.submit")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Configuration reports a missing or unusable setting.
func Configuration(key string) error {
	return &Error{
		Sentinel: ErrConfiguration,
		Message:  fmt.Sprintf("%s is not set", key),
		Key:      key,
	}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Adapter wraps a transport or provider failure raised inside a backend.
func Adapter(op string, cause error) error {
	return &Error{
		Sentinel: ErrAdapter,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// JobFailed reports a backend that explicitly ended a job in a failed state.
func JobFailed(handle, detail string) error {
	msg := fmt.Sprintf("job %s failed", handle)
	if detail != "" {
		msg += ". Details: " + detail
	}
	return &Error{
		Sentinel: ErrJobFailed,
		Message:  msg,
	}
}

// EmptyResult reports a job that finished but produced nothing.
func EmptyResult(handle string) error {
	return &Error{
		Sentinel: ErrEmptyResult,
		Message:  fmt.Sprintf("job %s finished with an empty result", handle),
	}
}

// EmptyResponse reports a synchronous call that returned nothing.
func EmptyResponse(op string) error {
	return &Error{
		Sentinel: ErrEmptyResult,
		Message:  fmt.Sprintf("%s returned an empty result", op),
		Op:       op,
	}
}

// DeadlineExceeded reports a step that ran out of time.
func DeadlineExceeded(op string, cause error) error {
	return &Error{
		Sentinel: ErrDeadlineExceeded,
		Message:  "deadline exceeded",
		Op:       op,
		Cause:    cause,
	}
}

// Kind returns the sentinel that classifies err, or nil when err is unclassified.
func Kind(err error) error {
	for _, sentinel := range []error{
		ErrConfiguration,
		ErrValidation,
		ErrDeadlineExceeded,
		ErrJobFailed,
		ErrEmptyResult,
		ErrAdapter,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
