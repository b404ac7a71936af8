package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// SessionNotFound reports an unknown or already closed session token.
func SessionNotFound(token string) *OrionError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", token)).
		WithDetail("token", token)
}

// SubprocessUnavailable reports a debugger process that has exited or was closed.
func SubprocessUnavailable(reason string, cause error) *OrionError {
	return Wrap(cause, ErrCodeSubprocessUnavailable, fmt.Sprintf("debugger unavailable: %s", reason))
}

// TransportTimeout reports a command whose terminal record did not arrive in time.
func TransportTimeout(command, expected string, timeout time.Duration) *OrionError {
	return New(ErrCodeTransportTimeout,
		fmt.Sprintf("no '%s' record for '%s' within %s", expected, command, timeout)).
		WithDetail("command", command).
		WithDetail("expected", expected).
		WithDetail("timeout", timeout.String())
}

// MalformedSnapshot reports a heap snapshot that could not be read or decoded.
func MalformedSnapshot(path string, cause error) *OrionError {
	return Wrap(cause, ErrCodeMalformedSnapshot, fmt.Sprintf("heap snapshot unreadable: %s", path)).
		WithDetail("path", path)
}

// ProtocolShapeMismatch reports a record lacking an expected payload.
func ProtocolShapeMismatch(command, want string) *OrionError {
	return New(ErrCodeProtocolShapeMismatch,
		fmt.Sprintf("response to '%s' carried no %s payload", command, want)).
		WithDetail("command", command)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *OrionError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// InvalidInput reports a malformed caller request.
func InvalidInput(reason string) *OrionError {
	return New(ErrCodeInvalidInput, reason)
}

// CompileFailed reports a failed compilation of an uploaded source.
func CompileFailed(source string, err error) *OrionError {
	orionErr := Wrap(err, ErrCodeCompileFailed, fmt.Sprintf("compilation failed: %s", source)).
		WithDetail("source", source)

	if exitErr, ok := err.(*exec.ExitError); ok {
		orionErr = orionErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return orionErr
}
