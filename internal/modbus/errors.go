package modbus

import (
	"errors"
	"fmt"
)

// Error kinds returned by the codec, the frame layer and address
// composition. Match them with errors.Is.
var (
	// ErrConfiguration reports invalid caller input: a missing URI, an
	// unknown or disallowed type, a quantity outside protocol limits.
	ErrConfiguration = errors.New("modbus: configuration error")

	// ErrOverlap reports two write addresses that claim the same memory.
	ErrOverlap = errors.New("modbus: overlapping addresses")

	// ErrProtocol reports a frame that is not valid Modbus/TCP: unknown
	// function code, bad protocol id, truncated payload.
	ErrProtocol = errors.New("modbus: protocol error")

	// ErrFraming reports a stream buffer holding more bytes than the frame
	// header declares, or a declared frame larger than any legal ADU.
	ErrFraming = errors.New("modbus: framing error")

	// ErrExtraction reports a value that could not be read out of a response.
	ErrExtraction = errors.New("modbus: extraction error")
)

// errTooShort returns a standardised validation error for short buffers.
func errTooShort(what string, got, need int) error {
	return fmt.Errorf("%w: %s too short: %d bytes (minimum %d)", ErrProtocol, what, got, need)
}

// ExceptionError is the error form of an exception response.
type ExceptionError struct {
	Function FunctionCode
	Code     ExceptionCode
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus exception 0x%02X (%s) for %s", uint8(e.Code), e.Code, e.Function)
}
