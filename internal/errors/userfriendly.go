package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tturner/mbcompose/internal/modbus"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps connection failures to a device.
func WrapNetworkError(err error, uri string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with device at %s", uri),
		Reason:  extractNetworkReason(err),
		Hint:    "Check that the device listens for Modbus/TCP on this address (default port 502)",
		Try:     fmt.Sprintf("nc -vz %s", strings.TrimPrefix(uri, "tcp://")),
		Err:     err,
	}
}

// WrapProtocolError wraps framing, protocol and exception failures of one
// operation.
func WrapProtocolError(err error, operation string) error {
	if err == nil {
		return nil
	}

	hint := "The device may not support this function code or address range"
	var exc *modbus.ExceptionError
	switch {
	case stderrors.As(err, &exc):
		hint = exceptionHint(exc.Code)
	case stderrors.Is(err, modbus.ErrFraming):
		hint = "The byte stream lost synchronisation; the connection was closed and will be reopened"
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Modbus operation failed: %s", operation),
		Reason:  extractProtocolReason(err),
		Hint:    hint,
		Try:     "Re-run with --log-level debug to dump the raw frames",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Every address needs an address field; writes also need a value, strings a length",
		Try:     fmt.Sprintf("mbcompose compose --config %s", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - device may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - device may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or device unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - device closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractProtocolReason(err error) string {
	var exc *modbus.ExceptionError
	switch {
	case stderrors.As(err, &exc):
		return fmt.Sprintf("Device answered with exception %s", exc.Code)
	case stderrors.Is(err, modbus.ErrFraming):
		return "Received a frame whose length does not match its header"
	case stderrors.Is(err, modbus.ErrProtocol):
		return "Received invalid or malformed response from device"
	case stderrors.Is(err, modbus.ErrExtraction):
		return "Response did not contain the requested addresses"
	case strings.Contains(err.Error(), "timeout"):
		return "Device did not respond within timeout period"
	}
	return "Modbus protocol error occurred"
}

func exceptionHint(code modbus.ExceptionCode) string {
	switch code {
	case modbus.ExceptionIllegalFunction:
		return "The device does not implement this function code"
	case modbus.ExceptionIllegalDataAddress:
		return "One of the addresses is outside the device's register map"
	case modbus.ExceptionIllegalDataValue:
		return "The quantity or value was rejected; try smaller requests"
	case modbus.ExceptionSlaveDeviceBusy, modbus.ExceptionAcknowledge:
		return "The device is busy; retry later"
	case modbus.ExceptionGatewayPathUnavail, modbus.ExceptionGatewayTargetFail:
		return "A gateway could not reach the unit id; check the unitId"
	default:
		return "Consult the device documentation for this exception code"
	}
}
