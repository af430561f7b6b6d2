package modbus

// Typed Modbus/TCP responses and the response factory.

import (
	"encoding/binary"
	"fmt"

	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// Response is a parsed Modbus/TCP response. The set of implementations is
// closed: one type per supported function code plus ExceptionResponse.
type Response interface {
	Function() FunctionCode
	Header() MBAPHeader
	Bytes() []byte
	isResponse()
}

// ReadResponse is a response whose data refers to a range of addresses.
// The wire format does not carry the start address, so it is attached
// after parsing from the originating request.
type ReadResponse interface {
	Response
	StartAddress() uint16
	SetStartAddress(addr uint16)
}

type startAddress struct {
	start uint16
}

// StartAddress returns the address attached with SetStartAddress.
func (s *startAddress) StartAddress() uint16 { return s.start }

// SetStartAddress records the address the response data begins at.
func (s *startAddress) SetStartAddress(addr uint16) { s.start = addr }

// bitData is the byte count prefixed, LSB-first packed payload of FC 0x01
// and 0x02 responses.
type bitData []byte

// ByteCount returns the byte count field.
func (d bitData) ByteCount() int { return int(d[0]) }

// Coils returns the packed coil bytes after the byte count.
func (d bitData) Coils() []byte { return d[1 : 1+d.ByteCount()] }

// IsCoilSet reports whether coil offset (relative to the start address) is set.
func (d bitData) IsCoilSet(offset int) (bool, error) {
	return codec.IsBitSet(d.Coils(), offset)
}

// registerData is the byte count prefixed payload of register reads.
type registerData []byte

// ByteCount returns the byte count field.
func (d registerData) ByteCount() int { return int(d[0]) }

// RegisterBytes returns the register bytes after the byte count.
func (d registerData) RegisterBytes() []byte { return d[1 : 1+d.ByteCount()] }

// Registers returns the register values as big-endian words.
func (d registerData) Registers() []uint16 {
	raw := d.RegisterBytes()
	regs := make([]uint16, len(raw)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return regs
}

// ReadCoilsResponse answers FC 0x01.
type ReadCoilsResponse struct {
	Frame
	startAddress
}

func (r *ReadCoilsResponse) bits() bitData { return bitData(r.Data) }

// Coils returns the packed coil bytes.
func (r *ReadCoilsResponse) Coils() []byte { return r.bits().Coils() }

// IsCoilSet reports whether coil offset (relative to the start address) is set.
func (r *ReadCoilsResponse) IsCoilSet(offset int) (bool, error) { return r.bits().IsCoilSet(offset) }

func (*ReadCoilsResponse) isResponse() {}

// ReadInputDiscretesResponse answers FC 0x02.
type ReadInputDiscretesResponse struct {
	Frame
	startAddress
}

func (r *ReadInputDiscretesResponse) bits() bitData { return bitData(r.Data) }

// Coils returns the packed input bytes.
func (r *ReadInputDiscretesResponse) Coils() []byte { return r.bits().Coils() }

// IsCoilSet reports whether input offset (relative to the start address) is set.
func (r *ReadInputDiscretesResponse) IsCoilSet(offset int) (bool, error) {
	return r.bits().IsCoilSet(offset)
}

func (*ReadInputDiscretesResponse) isResponse() {}

// ReadHoldingRegistersResponse answers FC 0x03.
type ReadHoldingRegistersResponse struct {
	Frame
	startAddress
}

// ByteCount returns the byte count field.
func (r *ReadHoldingRegistersResponse) ByteCount() int { return registerData(r.Data).ByteCount() }

// RegisterBytes returns the register bytes after the byte count.
func (r *ReadHoldingRegistersResponse) RegisterBytes() []byte {
	return registerData(r.Data).RegisterBytes()
}

// Registers returns the register values.
func (r *ReadHoldingRegistersResponse) Registers() []uint16 { return registerData(r.Data).Registers() }

func (*ReadHoldingRegistersResponse) isResponse() {}

// ReadInputRegistersResponse answers FC 0x04.
type ReadInputRegistersResponse struct {
	Frame
	startAddress
}

// ByteCount returns the byte count field.
func (r *ReadInputRegistersResponse) ByteCount() int { return registerData(r.Data).ByteCount() }

// RegisterBytes returns the register bytes after the byte count.
func (r *ReadInputRegistersResponse) RegisterBytes() []byte {
	return registerData(r.Data).RegisterBytes()
}

// Registers returns the register values.
func (r *ReadInputRegistersResponse) Registers() []uint16 { return registerData(r.Data).Registers() }

func (*ReadInputRegistersResponse) isResponse() {}

// ReadWriteMultipleRegistersResponse answers FC 0x17 with the read half.
type ReadWriteMultipleRegistersResponse struct {
	Frame
	startAddress
}

// ByteCount returns the byte count field.
func (r *ReadWriteMultipleRegistersResponse) ByteCount() int {
	return registerData(r.Data).ByteCount()
}

// RegisterBytes returns the register bytes after the byte count.
func (r *ReadWriteMultipleRegistersResponse) RegisterBytes() []byte {
	return registerData(r.Data).RegisterBytes()
}

// Registers returns the register values.
func (r *ReadWriteMultipleRegistersResponse) Registers() []uint16 {
	return registerData(r.Data).Registers()
}

func (*ReadWriteMultipleRegistersResponse) isResponse() {}

// WriteSingleCoilResponse echoes an FC 0x05 request.
type WriteSingleCoilResponse struct {
	Frame
}

func (r *WriteSingleCoilResponse) Address() uint16 { return binary.BigEndian.Uint16(r.Data[0:2]) }
func (r *WriteSingleCoilResponse) Value() bool {
	return binary.BigEndian.Uint16(r.Data[2:4]) == coilOn
}
func (*WriteSingleCoilResponse) isResponse() {}

// WriteSingleRegisterResponse echoes an FC 0x06 request.
type WriteSingleRegisterResponse struct {
	Frame
}

func (r *WriteSingleRegisterResponse) Address() uint16 { return binary.BigEndian.Uint16(r.Data[0:2]) }
func (r *WriteSingleRegisterResponse) Value() uint16   { return binary.BigEndian.Uint16(r.Data[2:4]) }
func (*WriteSingleRegisterResponse) isResponse()       {}

// WriteMultipleCoilsResponse acknowledges FC 0x0F.
type WriteMultipleCoilsResponse struct {
	Frame
}

func (r *WriteMultipleCoilsResponse) StartAddress() uint16 {
	return binary.BigEndian.Uint16(r.Data[0:2])
}
func (r *WriteMultipleCoilsResponse) Quantity() uint16 { return binary.BigEndian.Uint16(r.Data[2:4]) }
func (*WriteMultipleCoilsResponse) isResponse()        {}

// WriteMultipleRegistersResponse acknowledges FC 0x10.
type WriteMultipleRegistersResponse struct {
	Frame
}

func (r *WriteMultipleRegistersResponse) StartAddress() uint16 {
	return binary.BigEndian.Uint16(r.Data[0:2])
}
func (r *WriteMultipleRegistersResponse) Quantity() uint16 {
	return binary.BigEndian.Uint16(r.Data[2:4])
}
func (*WriteMultipleRegistersResponse) isResponse() {}

// MaskWriteRegisterResponse echoes an FC 0x16 request.
type MaskWriteRegisterResponse struct {
	Frame
}

func (r *MaskWriteRegisterResponse) Address() uint16 { return binary.BigEndian.Uint16(r.Data[0:2]) }
func (r *MaskWriteRegisterResponse) AndMask() uint16 { return binary.BigEndian.Uint16(r.Data[2:4]) }
func (r *MaskWriteRegisterResponse) OrMask() uint16  { return binary.BigEndian.Uint16(r.Data[4:6]) }
func (*MaskWriteRegisterResponse) isResponse()       {}

// ExceptionResponse is a device-reported error. FunctionCode holds the
// request's function code with the exception bit cleared.
type ExceptionResponse struct {
	Frame
	Code ExceptionCode
}

// Bytes serializes the response with the exception bit set again.
func (r *ExceptionResponse) Bytes() []byte {
	return encodeFrame(r.MBAP.TransactionID, r.MBAP.UnitID, r.FunctionCode|exceptionBit, []byte{byte(r.Code)})
}

// Err returns the exception as an error.
func (r *ExceptionResponse) Err() error {
	return &ExceptionError{Function: r.FunctionCode, Code: r.Code}
}

func (*ExceptionResponse) isResponse() {}

// NewExceptionResponse builds the exception a device returns for a request
// with function code fc.
func NewExceptionResponse(transactionID uint16, unitID uint8, fc FunctionCode, code ExceptionCode) *ExceptionResponse {
	return &ExceptionResponse{
		Frame: Frame{
			MBAP:         headerFor(transactionID, unitID, 1),
			FunctionCode: fc.Clear(),
			Data:         []byte{byte(code)},
		},
		Code: code,
	}
}

// ParseResponse decodes one complete response frame, typically after
// IsCompleteLength reported true. Exception frames become an
// *ExceptionResponse; everything else dispatches on the function code.
func ParseResponse(data []byte) (Response, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	return ResponseFromFrame(f)
}

// ResponseFromFrame types an already decoded frame.
func ResponseFromFrame(f Frame) (Response, error) {
	if f.FunctionCode.IsException() {
		if len(f.Data) < 1 {
			return nil, fmt.Errorf("%w: exception response for %s has no exception code", ErrProtocol, f.FunctionCode.Clear())
		}
		return &ExceptionResponse{
			Frame: Frame{MBAP: f.MBAP, FunctionCode: f.FunctionCode.Clear(), Data: f.Data[:1]},
			Code:  ExceptionCode(f.Data[0]),
		}, nil
	}

	switch f.FunctionCode {
	case FcReadCoils:
		if err := checkCountPrefixed(f, false); err != nil {
			return nil, err
		}
		return &ReadCoilsResponse{Frame: f}, nil
	case FcReadDiscreteInputs:
		if err := checkCountPrefixed(f, false); err != nil {
			return nil, err
		}
		return &ReadInputDiscretesResponse{Frame: f}, nil
	case FcReadHoldingRegisters:
		if err := checkCountPrefixed(f, true); err != nil {
			return nil, err
		}
		return &ReadHoldingRegistersResponse{Frame: f}, nil
	case FcReadInputRegisters:
		if err := checkCountPrefixed(f, true); err != nil {
			return nil, err
		}
		return &ReadInputRegistersResponse{Frame: f}, nil
	case FcReadWriteMultipleRegisters:
		if err := checkCountPrefixed(f, true); err != nil {
			return nil, err
		}
		return &ReadWriteMultipleRegistersResponse{Frame: f}, nil
	case FcWriteSingleCoil:
		if err := checkFixed(f, 4); err != nil {
			return nil, err
		}
		return &WriteSingleCoilResponse{Frame: f}, nil
	case FcWriteSingleRegister:
		if err := checkFixed(f, 4); err != nil {
			return nil, err
		}
		return &WriteSingleRegisterResponse{Frame: f}, nil
	case FcWriteMultipleCoils:
		if err := checkFixed(f, 4); err != nil {
			return nil, err
		}
		return &WriteMultipleCoilsResponse{Frame: f}, nil
	case FcWriteMultipleRegisters:
		if err := checkFixed(f, 4); err != nil {
			return nil, err
		}
		return &WriteMultipleRegistersResponse{Frame: f}, nil
	case FcMaskWriteRegister:
		if err := checkFixed(f, 6); err != nil {
			return nil, err
		}
		return &MaskWriteRegisterResponse{Frame: f}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported function code 0x%02X", ErrProtocol, uint8(f.FunctionCode))
	}
}

func checkFixed(f Frame, n int) error {
	if len(f.Data) < n {
		return errTooShort(f.FunctionCode.String()+" response", len(f.Data), n)
	}
	return nil
}

func checkCountPrefixed(f Frame, registers bool) error {
	if len(f.Data) < 1 {
		return errTooShort(f.FunctionCode.String()+" response", len(f.Data), 1)
	}
	byteCount := int(f.Data[0])
	if len(f.Data) < 1+byteCount {
		return errTooShort(f.FunctionCode.String()+" response data", len(f.Data), 1+byteCount)
	}
	if registers && byteCount%2 != 0 {
		return fmt.Errorf("%w: odd byte count in register response: %d", ErrProtocol, byteCount)
	}
	return nil
}
