package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Session errors
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSubprocessUnavailable ErrorCode = "SUBPROCESS_UNAVAILABLE"

	// Debugger protocol errors. These are recovered locally and only
	// surface in logs; callers never receive them as hard failures.
	ErrCodeTransportTimeout      ErrorCode = "TRANSPORT_TIMEOUT"
	ErrCodeMalformedSnapshot     ErrorCode = "MALFORMED_SNAPSHOT"
	ErrCodeProtocolShapeMismatch ErrorCode = "PROTOCOL_SHAPE_MISMATCH"

	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Build errors
	ErrCodeCompileFailed ErrorCode = "COMPILE_FAILED"

	// Command execution errors
	ErrCodeCommandTimeout ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandFailed  ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// OrionError represents a structured error with context
type OrionError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *OrionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *OrionError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *OrionError) WithDetail(key string, value interface{}) *OrionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *OrionError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new OrionError
func New(code ErrorCode, message string) *OrionError {
	return &OrionError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an OrionError
func Wrap(err error, code ErrorCode, message string) *OrionError {
	return &OrionError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific OrionError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, walking the Unwrap chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	orionErr, ok := err.(*OrionError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return orionErr.Code
}
