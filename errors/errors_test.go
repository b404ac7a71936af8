package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestOrionError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeSessionNotFound, "session not found")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeCommandFailed, "command failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeCommandFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeSessionNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("token", "7").WithDetail("frame", 2)
	if detailed.Details["token"] != "7" {
		t.Error("WithDetail should add details")
	}
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	inner := SessionNotFound("3")
	outer := fmt.Errorf("step: %w", inner)

	if got := GetCode(outer); got != ErrCodeSessionNotFound {
		t.Errorf("expected %s through wrap, got %s", ErrCodeSessionNotFound, got)
	}
	if GetCode(nil) != "" {
		t.Error("nil error should have no code")
	}
	if Is(fmt.Errorf("plain"), "") {
		t.Error("plain errors must not match the empty code")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := SessionNotFound("12")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}
	if err.Details["token"] != "12" {
		t.Error("SessionNotFound should include token detail")
	}

	err = TransportTimeout("-exec-step", "stopped", 2*time.Second)
	if err.Code != ErrCodeTransportTimeout {
		t.Errorf("expected code %s, got %s", ErrCodeTransportTimeout, err.Code)
	}
	if err.Details["timeout"] != "2s" {
		t.Errorf("expected timeout detail 2s, got %v", err.Details["timeout"])
	}

	err = SubprocessUnavailable("gdb exited", fmt.Errorf("EOF"))
	if !Is(err, ErrCodeSubprocessUnavailable) {
		t.Error("SubprocessUnavailable should carry its code")
	}
}
