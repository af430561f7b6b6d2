package modbus

// Modbus/TCP protocol types.
//
// Only the MBAP (TCP) framing is supported. Every frame is a 7-byte MBAP
// header, one function code byte and a function-specific payload.

import "encoding/binary"

// FunctionCode represents a Modbus function code.
type FunctionCode uint8

// exceptionBit is set in the function code of an exception response.
const exceptionBit FunctionCode = 0x80

// MBAPHeader is the Modbus Application Protocol header.
type MBAPHeader struct {
	TransactionID uint16 // Client-assigned ID for request/response correlation
	ProtocolID    uint16 // Always 0x0000 for Modbus
	Length        uint16 // Byte count of UnitID + function code + payload
	UnitID        uint8  // Slave/unit identifier
}

// MBAPHeaderSize is the fixed MBAP header size (7 bytes).
const MBAPHeaderSize = 7

// mbapPrefixSize covers transaction id, protocol id and length: the bytes
// needed before the frame size is known.
const mbapPrefixSize = 6

// ExceptionCode represents a Modbus exception code.
type ExceptionCode uint8

const (
	ExceptionIllegalFunction    ExceptionCode = 0x01
	ExceptionIllegalDataAddress ExceptionCode = 0x02
	ExceptionIllegalDataValue   ExceptionCode = 0x03
	ExceptionSlaveDeviceFailure ExceptionCode = 0x04
	ExceptionAcknowledge        ExceptionCode = 0x05
	ExceptionSlaveDeviceBusy    ExceptionCode = 0x06
	ExceptionMemoryParityError  ExceptionCode = 0x08
	ExceptionGatewayPathUnavail ExceptionCode = 0x0A
	ExceptionGatewayTargetFail  ExceptionCode = 0x0B
)

// headerFor computes the header of a frame carrying payloadLen bytes after
// the function code.
func headerFor(transactionID uint16, unitID uint8, payloadLen int) MBAPHeader {
	return MBAPHeader{
		TransactionID: transactionID,
		ProtocolID:    0x0000,
		Length:        uint16(2 + payloadLen), // UnitID + function code + payload
		UnitID:        unitID,
	}
}

// EncodeMBAPHeader encodes an MBAP header into 7 bytes.
func EncodeMBAPHeader(h MBAPHeader) []byte {
	return appendMBAPHeader(make([]byte, 0, MBAPHeaderSize), h)
}

func appendMBAPHeader(dst []byte, h MBAPHeader) []byte {
	dst = binary.BigEndian.AppendUint16(dst, h.TransactionID)
	dst = binary.BigEndian.AppendUint16(dst, h.ProtocolID)
	dst = binary.BigEndian.AppendUint16(dst, h.Length)
	return append(dst, h.UnitID)
}

// DecodeMBAPHeader decodes an MBAP header from bytes.
func DecodeMBAPHeader(data []byte) (MBAPHeader, error) {
	if len(data) < MBAPHeaderSize {
		return MBAPHeader{}, errTooShort("MBAP header", len(data), MBAPHeaderSize)
	}
	return MBAPHeader{
		TransactionID: binary.BigEndian.Uint16(data[0:2]),
		ProtocolID:    binary.BigEndian.Uint16(data[2:4]),
		Length:        binary.BigEndian.Uint16(data[4:6]),
		UnitID:        data[6],
	}, nil
}

// FrameSize returns the total frame size the header declares.
func (h MBAPHeader) FrameSize() int {
	return mbapPrefixSize + int(h.Length)
}

// String returns a human-readable name for the exception code.
func (e ExceptionCode) String() string {
	switch e {
	case ExceptionIllegalFunction:
		return "Illegal_Function"
	case ExceptionIllegalDataAddress:
		return "Illegal_Data_Address"
	case ExceptionIllegalDataValue:
		return "Illegal_Data_Value"
	case ExceptionSlaveDeviceFailure:
		return "Slave_Device_Failure"
	case ExceptionAcknowledge:
		return "Acknowledge"
	case ExceptionSlaveDeviceBusy:
		return "Slave_Device_Busy"
	case ExceptionMemoryParityError:
		return "Memory_Parity_Error"
	case ExceptionGatewayPathUnavail:
		return "Gateway_Path_Unavailable"
	case ExceptionGatewayTargetFail:
		return "Gateway_Target_Failed"
	default:
		return "Unknown"
	}
}
