package provider

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider failures. The engine keys retry and
// reporting decisions off the code, never off message text.
type ErrorCode string

const (
	CodeValidation  ErrorCode = "ValidationError"
	CodeNotFound    ErrorCode = "NotFound"
	CodeConflict    ErrorCode = "Conflict"
	CodeThrottling  ErrorCode = "Throttling"
	CodeUnavailable ErrorCode = "Unavailable"
	CodeInternal    ErrorCode = "InternalError"
	CodeUnsupported ErrorCode = "UnsupportedKind"
)

// Error is the structured failure every provider operation returns.
// Retryable marks transient faults; the engine retries those with backoff
// and treats everything else as terminal.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a terminal provider error.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewRetryable builds a transient provider error.
func NewRetryable(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Retryable: true}
}

// Wrap attaches a cause to a provider error.
func Wrap(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsRetryable reports whether err is a provider error marked transient.
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// IsNotFound reports whether err indicates the resource no longer exists.
func IsNotFound(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code == CodeNotFound
	}
	return false
}
