package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tturner/mbcompose/internal/modbus"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "connection failed",
				Reason:  "timeout",
				Hint:    "check network",
				Try:     "ping host",
				Err:     fmt.Errorf("dial tcp: timeout"),
			},
			contains: []string{"connection failed", "Reason: timeout", "Hint: check network", "Try: ping host", "Details: dial tcp: timeout"},
		},
		{
			name: "no reason",
			err: UserFriendlyError{
				Message: "failed",
				Hint:    "hint here",
			},
			contains: []string{"failed", "Hint: hint here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	err := UserFriendlyError{Message: "msg"}
	msg := err.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := UserFriendlyError{Message: "wrapper", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should return the inner error")
	}

	var nilErr UserFriendlyError
	if nilErr.Unwrap() != nil {
		t.Error("Unwrap on nil Err should return nil")
	}
}

func TestWrapNetworkError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if WrapNetworkError(nil, "tcp://10.0.0.1:502") != nil {
			t.Error("expected nil")
		}
	})

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout error", fmt.Errorf("dial tcp: i/o timeout"), "timeout"},
		{"connection refused", fmt.Errorf("connection refused"), "refused"},
		{"no route to host", fmt.Errorf("no route to host"), "route"},
		{"connection reset", fmt.Errorf("connection reset by peer"), "reset"},
		{"generic network error", fmt.Errorf("something else"), "Network communication failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ufe := WrapNetworkError(tt.err, "tcp://10.0.0.1:502").(UserFriendlyError)
			if !strings.Contains(ufe.Message, "tcp://10.0.0.1:502") {
				t.Errorf("message should contain uri, got %q", ufe.Message)
			}
			if !strings.Contains(ufe.Reason, tt.want) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.want)
			}
			if ufe.Try != "nc -vz 10.0.0.1:502" {
				t.Errorf("try = %q", ufe.Try)
			}
		})
	}
}

func TestWrapProtocolError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if WrapProtocolError(nil, "read") != nil {
			t.Error("expected nil")
		}
	})

	exc := &modbus.ExceptionError{Function: modbus.FcReadHoldingRegisters, Code: modbus.ExceptionIllegalDataAddress}
	tests := []struct {
		name       string
		err        error
		wantReason string
		wantHint   string
	}{
		{"exception", fmt.Errorf("read: %w", exc), "exception", "register map"},
		{"framing", fmt.Errorf("%w: packet length more bytes than expected", modbus.ErrFraming), "length", "synchronisation"},
		{"protocol", fmt.Errorf("%w: bad protocol id", modbus.ErrProtocol), "malformed", "function code"},
		{"extraction", fmt.Errorf("%w: short", modbus.ErrExtraction), "requested addresses", "function code"},
		{"timeout", fmt.Errorf("timeout waiting for response"), "timeout", "function code"},
		{"generic", fmt.Errorf("something"), "Modbus protocol error occurred", "function code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapProtocolError(tt.err, "read holding registers")
			ufe := err.(UserFriendlyError)
			if !strings.Contains(ufe.Message, "read holding registers") {
				t.Errorf("message should contain operation, got %q", ufe.Message)
			}
			if !strings.Contains(ufe.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.wantReason)
			}
			if !strings.Contains(ufe.Hint, tt.wantHint) {
				t.Errorf("hint = %q, want to contain %q", ufe.Hint, tt.wantHint)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error should unwrap to the cause")
			}
		})
	}
}

func TestWrapConfigError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if WrapConfigError(nil, "jobs.yaml") != nil {
			t.Error("expected nil")
		}
	})

	t.Run("wraps config error", func(t *testing.T) {
		cause := fmt.Errorf("%w: record has no address", modbus.ErrConfiguration)
		err := WrapConfigError(cause, "jobs.yaml")
		ufe := err.(UserFriendlyError)
		if !strings.Contains(ufe.Message, "jobs.yaml") {
			t.Errorf("message should contain config path, got %q", ufe.Message)
		}
		if ufe.Reason != cause.Error() {
			t.Errorf("reason should be inner error message, got %q", ufe.Reason)
		}
		if !strings.Contains(ufe.Try, "compose --config jobs.yaml") {
			t.Errorf("try should suggest compose, got %q", ufe.Try)
		}
		if !errors.Is(err, modbus.ErrConfiguration) {
			t.Error("should unwrap to ErrConfiguration")
		}
	})
}
