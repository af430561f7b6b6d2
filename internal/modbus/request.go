package modbus

// Typed Modbus/TCP requests, one per supported function code.

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// Request is a Modbus/TCP request. The set of implementations is closed:
// one type per supported function code.
type Request interface {
	Function() FunctionCode
	Header() MBAPHeader
	Bytes() []byte
	isRequest()
}

var transactionCounter atomic.Uint32

// NextTransactionID returns the next process-wide transaction id. The
// counter wraps at 65535.
func NextTransactionID() uint16 {
	return uint16(transactionCounter.Add(1) & 0xFFFF)
}

func checkQuantity(fc FunctionCode, qty, max int) error {
	if qty < 1 || qty > max {
		return fmt.Errorf("%w: %s quantity %d outside 1-%d", ErrConfiguration, fc, qty, max)
	}
	return nil
}

func checkSpan(fc FunctionCode, start uint16, qty int) error {
	if int(start)+qty > 0x10000 {
		return fmt.Errorf("%w: %s range %d+%d exceeds address space", ErrConfiguration, fc, start, qty)
	}
	return nil
}

// ReadCoilsRequest is FC 0x01.
type ReadCoilsRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Quantity      uint16
}

// NewReadCoilsRequest validates quantity (1-2000) and assigns the next
// transaction id.
func NewReadCoilsRequest(unitID uint8, start, quantity uint16) (*ReadCoilsRequest, error) {
	if err := validateRead(FcReadCoils, start, quantity, MaxReadBits); err != nil {
		return nil, err
	}
	return &ReadCoilsRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Quantity:      quantity,
	}, nil
}

func (r *ReadCoilsRequest) Function() FunctionCode { return FcReadCoils }
func (r *ReadCoilsRequest) Header() MBAPHeader     { return headerFor(r.TransactionID, r.UnitID, 4) }
func (r *ReadCoilsRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcReadCoils, encodeAddrQty(r.StartAddress, r.Quantity))
}
func (*ReadCoilsRequest) isRequest() {}

// ReadInputDiscretesRequest is FC 0x02.
type ReadInputDiscretesRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Quantity      uint16
}

// NewReadInputDiscretesRequest validates quantity (1-2000) and assigns the
// next transaction id.
func NewReadInputDiscretesRequest(unitID uint8, start, quantity uint16) (*ReadInputDiscretesRequest, error) {
	if err := validateRead(FcReadDiscreteInputs, start, quantity, MaxReadBits); err != nil {
		return nil, err
	}
	return &ReadInputDiscretesRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Quantity:      quantity,
	}, nil
}

func (r *ReadInputDiscretesRequest) Function() FunctionCode { return FcReadDiscreteInputs }
func (r *ReadInputDiscretesRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 4)
}
func (r *ReadInputDiscretesRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcReadDiscreteInputs, encodeAddrQty(r.StartAddress, r.Quantity))
}
func (*ReadInputDiscretesRequest) isRequest() {}

// ReadHoldingRegistersRequest is FC 0x03.
type ReadHoldingRegistersRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Quantity      uint16
}

// NewReadHoldingRegistersRequest validates quantity (1-125) and assigns the
// next transaction id.
func NewReadHoldingRegistersRequest(unitID uint8, start, quantity uint16) (*ReadHoldingRegistersRequest, error) {
	if err := validateRead(FcReadHoldingRegisters, start, quantity, MaxReadRegisters); err != nil {
		return nil, err
	}
	return &ReadHoldingRegistersRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Quantity:      quantity,
	}, nil
}

func (r *ReadHoldingRegistersRequest) Function() FunctionCode { return FcReadHoldingRegisters }
func (r *ReadHoldingRegistersRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 4)
}
func (r *ReadHoldingRegistersRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcReadHoldingRegisters, encodeAddrQty(r.StartAddress, r.Quantity))
}
func (*ReadHoldingRegistersRequest) isRequest() {}

// ReadInputRegistersRequest is FC 0x04.
type ReadInputRegistersRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Quantity      uint16
}

// NewReadInputRegistersRequest validates quantity (1-125) and assigns the
// next transaction id.
func NewReadInputRegistersRequest(unitID uint8, start, quantity uint16) (*ReadInputRegistersRequest, error) {
	if err := validateRead(FcReadInputRegisters, start, quantity, MaxReadRegisters); err != nil {
		return nil, err
	}
	return &ReadInputRegistersRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Quantity:      quantity,
	}, nil
}

func (r *ReadInputRegistersRequest) Function() FunctionCode { return FcReadInputRegisters }
func (r *ReadInputRegistersRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 4)
}
func (r *ReadInputRegistersRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcReadInputRegisters, encodeAddrQty(r.StartAddress, r.Quantity))
}
func (*ReadInputRegistersRequest) isRequest() {}

func validateRead(fc FunctionCode, start, quantity uint16, max int) error {
	if err := checkQuantity(fc, int(quantity), max); err != nil {
		return err
	}
	return checkSpan(fc, start, int(quantity))
}

// WriteSingleCoilRequest is FC 0x05.
type WriteSingleCoilRequest struct {
	TransactionID uint16
	UnitID        uint8
	Address       uint16
	Value         bool
}

// NewWriteSingleCoilRequest assigns the next transaction id.
func NewWriteSingleCoilRequest(unitID uint8, addr uint16, value bool) *WriteSingleCoilRequest {
	return &WriteSingleCoilRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		Address:       addr,
		Value:         value,
	}
}

func (r *WriteSingleCoilRequest) Function() FunctionCode { return FcWriteSingleCoil }
func (r *WriteSingleCoilRequest) Header() MBAPHeader     { return headerFor(r.TransactionID, r.UnitID, 4) }
func (r *WriteSingleCoilRequest) Bytes() []byte {
	var v uint16
	if r.Value {
		v = coilOn
	}
	return encodeFrame(r.TransactionID, r.UnitID, FcWriteSingleCoil, encodeAddrQty(r.Address, v))
}
func (*WriteSingleCoilRequest) isRequest() {}

// WriteSingleRegisterRequest is FC 0x06.
type WriteSingleRegisterRequest struct {
	TransactionID uint16
	UnitID        uint8
	Address       uint16
	Value         uint16
}

// NewWriteSingleRegisterRequest assigns the next transaction id.
func NewWriteSingleRegisterRequest(unitID uint8, addr, value uint16) *WriteSingleRegisterRequest {
	return &WriteSingleRegisterRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		Address:       addr,
		Value:         value,
	}
}

func (r *WriteSingleRegisterRequest) Function() FunctionCode { return FcWriteSingleRegister }
func (r *WriteSingleRegisterRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 4)
}
func (r *WriteSingleRegisterRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcWriteSingleRegister, encodeAddrQty(r.Address, r.Value))
}
func (*WriteSingleRegisterRequest) isRequest() {}

// WriteMultipleCoilsRequest is FC 0x0F. Quantity is len(Coils).
type WriteMultipleCoilsRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Coils         []bool
}

// NewWriteMultipleCoilsRequest validates the coil count (1-1968) and
// assigns the next transaction id.
func NewWriteMultipleCoilsRequest(unitID uint8, start uint16, coils []bool) (*WriteMultipleCoilsRequest, error) {
	if err := checkQuantity(FcWriteMultipleCoils, len(coils), MaxWriteCoils); err != nil {
		return nil, err
	}
	if err := checkSpan(FcWriteMultipleCoils, start, len(coils)); err != nil {
		return nil, err
	}
	return &WriteMultipleCoilsRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Coils:         append([]bool(nil), coils...),
	}, nil
}

func (r *WriteMultipleCoilsRequest) Function() FunctionCode { return FcWriteMultipleCoils }
func (r *WriteMultipleCoilsRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, len(r.payload()))
}
func (r *WriteMultipleCoilsRequest) Bytes() []byte {
	return encodeFrame(r.TransactionID, r.UnitID, FcWriteMultipleCoils, r.payload())
}
func (*WriteMultipleCoilsRequest) isRequest() {}

func (r *WriteMultipleCoilsRequest) payload() []byte {
	packed := codec.BoolsToBytes(r.Coils)
	buf := encodeAddrQty(r.StartAddress, uint16(len(r.Coils)))
	buf = append(buf, byte(len(packed)))
	return append(buf, packed...)
}

// WriteMultipleRegistersRequest is FC 0x10. Data holds the register bytes
// exactly as they go on the wire; Quantity is len(Data)/2.
type WriteMultipleRegistersRequest struct {
	TransactionID uint16
	UnitID        uint8
	StartAddress  uint16
	Data          []byte
}

// NewWriteMultipleRegistersRequest validates data (even length, 1-123
// registers) and assigns the next transaction id.
func NewWriteMultipleRegistersRequest(unitID uint8, start uint16, data []byte) (*WriteMultipleRegistersRequest, error) {
	if err := checkRegisterData(FcWriteMultipleRegisters, start, data, MaxWriteRegisters); err != nil {
		return nil, err
	}
	return &WriteMultipleRegistersRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		StartAddress:  start,
		Data:          cloneBytes(data),
	}, nil
}

// Quantity returns the number of registers written.
func (r *WriteMultipleRegistersRequest) Quantity() uint16 { return uint16(len(r.Data) / 2) }

func (r *WriteMultipleRegistersRequest) Function() FunctionCode { return FcWriteMultipleRegisters }
func (r *WriteMultipleRegistersRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 5+len(r.Data))
}
func (r *WriteMultipleRegistersRequest) Bytes() []byte {
	buf := encodeAddrQty(r.StartAddress, r.Quantity())
	buf = append(buf, byte(len(r.Data)))
	buf = append(buf, r.Data...)
	return encodeFrame(r.TransactionID, r.UnitID, FcWriteMultipleRegisters, buf)
}
func (*WriteMultipleRegistersRequest) isRequest() {}

func checkRegisterData(fc FunctionCode, start uint16, data []byte, max int) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("%w: %s register data has odd length %d", ErrConfiguration, fc, len(data))
	}
	if err := checkQuantity(fc, len(data)/2, max); err != nil {
		return err
	}
	return checkSpan(fc, start, len(data)/2)
}

// MaskWriteRegisterRequest is FC 0x16. The device stores
// (current AND AndMask) OR (OrMask AND NOT AndMask).
type MaskWriteRegisterRequest struct {
	TransactionID uint16
	UnitID        uint8
	Address       uint16
	AndMask       uint16
	OrMask        uint16
}

// NewMaskWriteRegisterRequest assigns the next transaction id.
func NewMaskWriteRegisterRequest(unitID uint8, addr, andMask, orMask uint16) *MaskWriteRegisterRequest {
	return &MaskWriteRegisterRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		Address:       addr,
		AndMask:       andMask,
		OrMask:        orMask,
	}
}

func (r *MaskWriteRegisterRequest) Function() FunctionCode { return FcMaskWriteRegister }
func (r *MaskWriteRegisterRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 6)
}
func (r *MaskWriteRegisterRequest) Bytes() []byte {
	buf := encodeAddrQty(r.Address, r.AndMask)
	buf = binary.BigEndian.AppendUint16(buf, r.OrMask)
	return encodeFrame(r.TransactionID, r.UnitID, FcMaskWriteRegister, buf)
}
func (*MaskWriteRegisterRequest) isRequest() {}

// ReadWriteMultipleRegistersRequest is FC 0x17. The write is performed
// before the read.
type ReadWriteMultipleRegistersRequest struct {
	TransactionID uint16
	UnitID        uint8
	ReadAddress   uint16
	ReadQuantity  uint16
	WriteAddress  uint16
	WriteData     []byte
}

// NewReadWriteMultipleRegistersRequest validates both halves (read 1-125,
// write 1-121 registers) and assigns the next transaction id.
func NewReadWriteMultipleRegistersRequest(unitID uint8, readAddr, readQty, writeAddr uint16, writeData []byte) (*ReadWriteMultipleRegistersRequest, error) {
	if err := validateRead(FcReadWriteMultipleRegisters, readAddr, readQty, MaxReadRegisters); err != nil {
		return nil, err
	}
	if err := checkRegisterData(FcReadWriteMultipleRegisters, writeAddr, writeData, MaxReadWriteRegisters); err != nil {
		return nil, err
	}
	return &ReadWriteMultipleRegistersRequest{
		TransactionID: NextTransactionID(),
		UnitID:        unitID,
		ReadAddress:   readAddr,
		ReadQuantity:  readQty,
		WriteAddress:  writeAddr,
		WriteData:     cloneBytes(writeData),
	}, nil
}

func (r *ReadWriteMultipleRegistersRequest) Function() FunctionCode {
	return FcReadWriteMultipleRegisters
}
func (r *ReadWriteMultipleRegistersRequest) Header() MBAPHeader {
	return headerFor(r.TransactionID, r.UnitID, 9+len(r.WriteData))
}
func (r *ReadWriteMultipleRegistersRequest) Bytes() []byte {
	buf := encodeAddrQty(r.ReadAddress, r.ReadQuantity)
	buf = append(buf, encodeAddrQty(r.WriteAddress, uint16(len(r.WriteData)/2))...)
	buf = append(buf, byte(len(r.WriteData)))
	buf = append(buf, r.WriteData...)
	return encodeFrame(r.TransactionID, r.UnitID, FcReadWriteMultipleRegisters, buf)
}
func (*ReadWriteMultipleRegistersRequest) isRequest() {}

// RequestStart returns the first address a request touches. For FC 0x17
// this is the read address, which is what the response data refers to.
func RequestStart(r Request) uint16 {
	switch req := r.(type) {
	case *ReadCoilsRequest:
		return req.StartAddress
	case *ReadInputDiscretesRequest:
		return req.StartAddress
	case *ReadHoldingRegistersRequest:
		return req.StartAddress
	case *ReadInputRegistersRequest:
		return req.StartAddress
	case *WriteSingleCoilRequest:
		return req.Address
	case *WriteSingleRegisterRequest:
		return req.Address
	case *WriteMultipleCoilsRequest:
		return req.StartAddress
	case *WriteMultipleRegistersRequest:
		return req.StartAddress
	case *MaskWriteRegisterRequest:
		return req.Address
	case *ReadWriteMultipleRegistersRequest:
		return req.ReadAddress
	default:
		return 0
	}
}

// RequestQuantity returns the number of coils or registers a request reads
// or writes.
func RequestQuantity(r Request) int {
	switch req := r.(type) {
	case *ReadCoilsRequest:
		return int(req.Quantity)
	case *ReadInputDiscretesRequest:
		return int(req.Quantity)
	case *ReadHoldingRegistersRequest:
		return int(req.Quantity)
	case *ReadInputRegistersRequest:
		return int(req.Quantity)
	case *WriteMultipleCoilsRequest:
		return len(req.Coils)
	case *WriteMultipleRegistersRequest:
		return int(req.Quantity())
	case *ReadWriteMultipleRegistersRequest:
		return int(req.ReadQuantity)
	case *WriteSingleCoilRequest, *WriteSingleRegisterRequest, *MaskWriteRegisterRequest:
		return 1
	default:
		return 0
	}
}
