package modbus

// Modbus TCP (MBAP) frame codec and stream completeness check.

import (
	"encoding/binary"
	"fmt"
)

// MinPDUSize is the minimum PDU size (function code only).
const MinPDUSize = 1

// MaxPDUSize is the maximum Modbus PDU size (253 bytes).
const MaxPDUSize = 253

// MaxADUSize is the maximum Modbus TCP ADU size (MBAP header + PDU).
const MaxADUSize = MBAPHeaderSize + MaxPDUSize

// Frame is an untyped Modbus/TCP ADU. Typed requests and responses are
// built from it; the test device and pcap import work on it directly.
type Frame struct {
	MBAP         MBAPHeader
	FunctionCode FunctionCode
	Data         []byte // payload after the function code
}

// Header returns the frame header with Length recomputed from Data.
func (f Frame) Header() MBAPHeader {
	return headerFor(f.MBAP.TransactionID, f.MBAP.UnitID, len(f.Data))
}

// Function returns the function code byte as carried on the wire.
func (f Frame) Function() FunctionCode {
	return f.FunctionCode
}

// Bytes serializes the frame. The Length field is always derived from Data.
func (f Frame) Bytes() []byte {
	return encodeFrame(f.MBAP.TransactionID, f.MBAP.UnitID, f.FunctionCode, f.Data)
}

func encodeFrame(transactionID uint16, unitID uint8, fc FunctionCode, payload []byte) []byte {
	buf := make([]byte, 0, MBAPHeaderSize+1+len(payload))
	buf = appendMBAPHeader(buf, headerFor(transactionID, unitID, len(payload)))
	buf = append(buf, byte(fc))
	return append(buf, payload...)
}

// DecodeFrame decodes one complete Modbus TCP frame. Bytes past the length
// the header declares are ignored.
func DecodeFrame(data []byte) (Frame, error) {
	hdr, err := DecodeMBAPHeader(data)
	if err != nil {
		return Frame{}, err
	}
	if hdr.ProtocolID != 0x0000 {
		return Frame{}, fmt.Errorf("%w: invalid Modbus protocol ID: 0x%04X", ErrProtocol, hdr.ProtocolID)
	}
	// Length field covers UnitID (1 byte) + PDU.
	pduStart := MBAPHeaderSize
	pduEnd := hdr.FrameSize()
	if pduEnd > len(data) {
		return Frame{}, errTooShort("Modbus TCP frame", len(data), pduEnd)
	}
	if pduEnd < pduStart+MinPDUSize {
		return Frame{}, errTooShort("Modbus PDU", pduEnd-pduStart, MinPDUSize)
	}
	return Frame{
		MBAP:         hdr,
		FunctionCode: FunctionCode(data[pduStart]),
		Data:         cloneBytes(data[pduStart+1 : pduEnd]),
	}, nil
}

// IsCompleteLength reports whether buf holds a complete frame. It returns
// false until the 6-byte length prefix has arrived and while the frame is
// still short. A buffer longer than the declared frame, or a declared frame
// larger than MaxADUSize, means the stream lost sync and fails with
// ErrFraming; the excess is never silently dropped.
func IsCompleteLength(buf []byte) (bool, error) {
	if len(buf) < mbapPrefixSize {
		return false, nil
	}
	expected := mbapPrefixSize + int(binary.BigEndian.Uint16(buf[4:6]))
	if expected > MaxADUSize {
		return false, fmt.Errorf("%w: declared frame of %d bytes exceeds maximum %d", ErrFraming, expected, MaxADUSize)
	}
	if len(buf) > expected {
		return false, fmt.Errorf("%w: packet length more bytes than expected: have %d, header declares %d", ErrFraming, len(buf), expected)
	}
	return len(buf) == expected, nil
}

// IsModbusTCP returns true if data appears to be a Modbus TCP (MBAP) frame.
// It checks for protocol ID 0x0000, plausible length and a known function.
func IsModbusTCP(data []byte) bool {
	if len(data) < MBAPHeaderSize+1 {
		return false
	}
	protocolID := binary.BigEndian.Uint16(data[2:4])
	if protocolID != 0x0000 {
		return false
	}
	length := binary.BigEndian.Uint16(data[4:6])
	if length < 2 || length > MaxPDUSize+1 {
		return false
	}
	return IsKnownFunction(FunctionCode(data[MBAPHeaderSize]))
}

// --- internal helpers ---

func encodeAddrQty(addr, qty uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], addr)
	binary.BigEndian.PutUint16(buf[2:4], qty)
	return buf
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
