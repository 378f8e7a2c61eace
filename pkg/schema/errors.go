package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeTimeout           = "TIMEOUT_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeActionUnavailable = "ACTION_UNAVAILABLE"
	ErrCodeGuardUnavailable  = "GUARD_UNAVAILABLE"
	ErrCodeStore             = "STORE_ERROR"
)

// OpcodeError is the structured error type returned by registry, catalog and
// store operations. Errors produced by a guard itself are never wrapped in it.
type OpcodeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Action  string         `json:"action,omitempty"`
	Cause   error          `json:"-"`
}

func (e *OpcodeError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Code, e.Action, e.Message)
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

// WithAction attaches the name of the action that failed.
func (e *OpcodeError) WithAction(name string) *OpcodeError {
	e.Action = name
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

// HasCode reports whether err, or any OpcodeError in its cause chain, carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var oe *OpcodeError
		if !errors.As(err, &oe) {
			return false
		}
		if oe.Code == code {
			return true
		}
		err = oe.Cause
	}
	return false
}
