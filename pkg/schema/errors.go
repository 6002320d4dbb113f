package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeStore       = "STORE_ERROR"
	ErrCodeConsistency = "CONSISTENCY_ERROR"
	ErrCodeArtifact    = "ARTIFACT_ERROR"
	ErrCodeSuspend     = "SUSPEND_ERROR"
)

// OpcodeError is the structured error type for all wait protocol operations.
type OpcodeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Path    string         `json:"path,omitempty"`
	Cause   error          `json:"-"`
}

func (e *OpcodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] wait %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *OpcodeError) Unwrap() error {
	return e.Cause
}

// NewError creates a new OpcodeError.
func NewError(code, message string) *OpcodeError {
	return &OpcodeError{Code: code, Message: message}
}

// NewErrorf creates a new OpcodeError with a formatted message.
func NewErrorf(code, format string, args ...any) *OpcodeError {
	return &OpcodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPath attaches the wait path to the error.
func (e *OpcodeError) WithPath(path string) *OpcodeError {
	e.Path = path
	return e
}

// WithCause attaches an underlying cause.
func (e *OpcodeError) WithCause(err error) *OpcodeError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *OpcodeError) WithDetails(details map[string]any) *OpcodeError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) an OpcodeError with the given code.
func IsCode(err error, code string) bool {
	var oe *OpcodeError
	if !errors.As(err, &oe) {
		return false
	}
	return oe.Code == code
}
