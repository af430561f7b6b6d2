package compose

import (
	"errors"

	"github.com/google/uuid"

	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// builder holds what every builder shares: the default target and the
// errors collected while adding addresses.
type builder struct {
	target Target
	errs   []error
}

func (b *builder) fail(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *builder) check(t Target) bool {
	if err := t.validate(); err != nil {
		b.fail(err)
		return false
	}
	return true
}

func (b *builder) err() error { return errors.Join(b.errs...) }

// ReadCoilsBuilder composes FC 0x01 or FC 0x02 reads.
type ReadCoilsBuilder struct {
	builder
	fc    modbus.FunctionCode
	group group[string, ReadCoilAddress]
}

// NewReadCoilsBuilder composes coil reads against uri/unitID unless an
// address names another target.
func NewReadCoilsBuilder(uri string, unitID uint8) *ReadCoilsBuilder {
	return newReadCoilsBuilder(modbus.FcReadCoils, uri, unitID)
}

// NewReadInputDiscretesBuilder composes discrete input reads.
func NewReadInputDiscretesBuilder(uri string, unitID uint8) *ReadCoilsBuilder {
	return newReadCoilsBuilder(modbus.FcReadDiscreteInputs, uri, unitID)
}

func newReadCoilsBuilder(fc modbus.FunctionCode, uri string, unitID uint8) *ReadCoilsBuilder {
	return &ReadCoilsBuilder{
		builder: builder{target: Target{URI: uri, UnitID: unitID}},
		fc:      fc,
		group:   newGroup[string, ReadCoilAddress](),
	}
}

// Coil adds the coil at addr.
func (b *ReadCoilsBuilder) Coil(addr uint16, opts ...ReadOption) *ReadCoilsBuilder {
	return b.AddAddress(NewReadCoilAddress(addr, opts...))
}

// AddAddress adds a to the default target.
func (b *ReadCoilsBuilder) AddAddress(a ReadCoilAddress) *ReadCoilsBuilder {
	return b.AddTo(b.target, a)
}

// AddTo adds a to target t. A second address with the same name replaces
// the first.
func (b *ReadCoilsBuilder) AddTo(t Target, a ReadCoilAddress) *ReadCoilsBuilder {
	if b.check(t) {
		b.group.put(t, a.Name(), a)
	}
	return b
}

// AddRecord adds a described address.
func (b *ReadCoilsBuilder) AddRecord(r Record) *ReadCoilsBuilder {
	t, a, err := r.readCoil(b.target)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddTo(t, a)
}

// AddRecords adds every record in order.
func (b *ReadCoilsBuilder) AddRecords(rs ...Record) *ReadCoilsBuilder {
	for _, r := range rs {
		b.AddRecord(r)
	}
	return b
}

// Build returns one request per chunk, targets in ascending order. Any
// error collected while adding addresses is returned instead.
func (b *ReadCoilsBuilder) Build() ([]ReadRequest, error) {
	if err := b.err(); err != nil {
		return nil, err
	}
	s := splitter[ReadCoilAddress]{fc: b.fc, max: modbus.MaxReadBits}
	var out []ReadRequest
	for _, t := range b.group.targets() {
		chunks, err := s.split(t, b.group.addresses(t))
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			req, err := newBitRead(b.fc, t.UnitID, c.start, uint16(c.quantity()))
			if err != nil {
				return nil, err
			}
			addrs := make([]ReadAddress, len(c.addresses))
			for i, a := range c.addresses {
				addrs[i] = a
			}
			out = append(out, ReadRequest{ID: uuid.New(), Target: t, Addresses: addrs, Request: req})
		}
	}
	return out, nil
}

func newBitRead(fc modbus.FunctionCode, unitID uint8, start, qty uint16) (modbus.Request, error) {
	if fc == modbus.FcReadDiscreteInputs {
		return modbus.NewReadInputDiscretesRequest(unitID, start, qty)
	}
	return modbus.NewReadCoilsRequest(unitID, start, qty)
}

// ReadRegistersBuilder composes FC 0x03 or FC 0x04 reads.
type ReadRegistersBuilder struct {
	builder
	fc    modbus.FunctionCode
	group group[string, ReadRegisterAddress]
}

// NewReadHoldingRegistersBuilder composes holding register reads against
// uri/unitID unless an address names another target.
func NewReadHoldingRegistersBuilder(uri string, unitID uint8) *ReadRegistersBuilder {
	return newReadRegistersBuilder(modbus.FcReadHoldingRegisters, uri, unitID)
}

// NewReadInputRegistersBuilder composes input register reads.
func NewReadInputRegistersBuilder(uri string, unitID uint8) *ReadRegistersBuilder {
	return newReadRegistersBuilder(modbus.FcReadInputRegisters, uri, unitID)
}

func newReadRegistersBuilder(fc modbus.FunctionCode, uri string, unitID uint8) *ReadRegistersBuilder {
	return &ReadRegistersBuilder{
		builder: builder{target: Target{URI: uri, UnitID: unitID}},
		fc:      fc,
		group:   newGroup[string, ReadRegisterAddress](),
	}
}

func (b *ReadRegistersBuilder) numeric(addr uint16, t codec.Type, opts []ReadOption) *ReadRegistersBuilder {
	a, err := NewReadRegisterAddress(addr, t, opts...)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddAddress(a)
}

func (b *ReadRegistersBuilder) Int16(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeInt16, opts)
}

func (b *ReadRegistersBuilder) Uint16(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeUint16, opts)
}

func (b *ReadRegistersBuilder) Int32(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeInt32, opts)
}

func (b *ReadRegistersBuilder) Uint32(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeUint32, opts)
}

func (b *ReadRegistersBuilder) Int64(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeInt64, opts)
}

func (b *ReadRegistersBuilder) Uint64(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeUint64, opts)
}

// Float reads an IEEE-754 single across two registers.
func (b *ReadRegistersBuilder) Float(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeFloat, opts)
}

// Double reads an IEEE-754 double across four registers.
func (b *ReadRegistersBuilder) Double(addr uint16, opts ...ReadOption) *ReadRegistersBuilder {
	return b.numeric(addr, codec.TypeDouble, opts)
}

// Bit reads one bit (0 = least significant) of the register at addr.
func (b *ReadRegistersBuilder) Bit(addr uint16, bit int, opts ...ReadOption) *ReadRegistersBuilder {
	a, err := NewReadBitAddress(addr, bit, opts...)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddAddress(a)
}

// Byte reads the high (firstByte) or low byte of the register at addr.
func (b *ReadRegistersBuilder) Byte(addr uint16, firstByte bool, opts ...ReadOption) *ReadRegistersBuilder {
	return b.AddAddress(NewReadByteAddress(addr, firstByte, opts...))
}

// String reads byteLength bytes of text starting at addr.
func (b *ReadRegistersBuilder) String(addr uint16, byteLength int, opts ...ReadOption) *ReadRegistersBuilder {
	a, err := NewReadStringAddress(addr, byteLength, opts...)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddAddress(a)
}

// AddAddress adds a to the default target.
func (b *ReadRegistersBuilder) AddAddress(a ReadRegisterAddress) *ReadRegistersBuilder {
	return b.AddTo(b.target, a)
}

// AddTo adds a to target t. A second address with the same name replaces
// the first.
func (b *ReadRegistersBuilder) AddTo(t Target, a ReadRegisterAddress) *ReadRegistersBuilder {
	if b.check(t) {
		b.group.put(t, a.Name(), a)
	}
	return b
}

// AddRecord adds a described address.
func (b *ReadRegistersBuilder) AddRecord(r Record) *ReadRegistersBuilder {
	t, a, err := r.readRegister(b.target)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddTo(t, a)
}

// AddRecords adds every record in order.
func (b *ReadRegistersBuilder) AddRecords(rs ...Record) *ReadRegistersBuilder {
	for _, r := range rs {
		b.AddRecord(r)
	}
	return b
}

// Build returns one request per chunk, targets in ascending order.
func (b *ReadRegistersBuilder) Build() ([]ReadRequest, error) {
	if err := b.err(); err != nil {
		return nil, err
	}
	s := splitter[ReadRegisterAddress]{fc: b.fc, max: modbus.MaxReadRegisters}
	var out []ReadRequest
	for _, t := range b.group.targets() {
		chunks, err := s.split(t, b.group.addresses(t))
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			req, err := newRegisterRead(b.fc, t.UnitID, c.start, uint16(c.quantity()))
			if err != nil {
				return nil, err
			}
			addrs := make([]ReadAddress, len(c.addresses))
			for i, a := range c.addresses {
				addrs[i] = a
			}
			out = append(out, ReadRequest{ID: uuid.New(), Target: t, Addresses: addrs, Request: req})
		}
	}
	return out, nil
}

func newRegisterRead(fc modbus.FunctionCode, unitID uint8, start, qty uint16) (modbus.Request, error) {
	if fc == modbus.FcReadInputRegisters {
		return modbus.NewReadInputRegistersRequest(unitID, start, qty)
	}
	return modbus.NewReadHoldingRegistersRequest(unitID, start, qty)
}

// WriteCoilsBuilder composes FC 0x0F writes.
type WriteCoilsBuilder struct {
	builder
	group group[uint16, WriteCoilAddress]
}

// NewWriteCoilsBuilder composes coil writes against uri/unitID unless an
// address names another target.
func NewWriteCoilsBuilder(uri string, unitID uint8) *WriteCoilsBuilder {
	return &WriteCoilsBuilder{
		builder: builder{target: Target{URI: uri, UnitID: unitID}},
		group:   newGroup[uint16, WriteCoilAddress](),
	}
}

// Coil sets the coil at addr to value.
func (b *WriteCoilsBuilder) Coil(addr uint16, value bool) *WriteCoilsBuilder {
	return b.AddAddress(NewWriteCoilAddress(addr, value))
}

// AddAddress adds a to the default target.
func (b *WriteCoilsBuilder) AddAddress(a WriteCoilAddress) *WriteCoilsBuilder {
	return b.AddTo(b.target, a)
}

// AddTo adds a to target t. Writing the same coil twice keeps the last
// value.
func (b *WriteCoilsBuilder) AddTo(t Target, a WriteCoilAddress) *WriteCoilsBuilder {
	if b.check(t) {
		b.group.put(t, a.Address(), a)
	}
	return b
}

// AddRecord adds a described write.
func (b *WriteCoilsBuilder) AddRecord(r Record) *WriteCoilsBuilder {
	t, a, err := r.writeCoil(b.target)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddTo(t, a)
}

// AddRecords adds every record in order.
func (b *WriteCoilsBuilder) AddRecords(rs ...Record) *WriteCoilsBuilder {
	for _, r := range rs {
		b.AddRecord(r)
	}
	return b
}

// Build returns one FC 0x0F request per contiguous run of coils.
func (b *WriteCoilsBuilder) Build() ([]WriteRequest, error) {
	if err := b.err(); err != nil {
		return nil, err
	}
	s := splitter[WriteCoilAddress]{fc: modbus.FcWriteMultipleCoils, max: modbus.MaxWriteCoils, checkOverlap: true}
	var out []WriteRequest
	for _, t := range b.group.targets() {
		chunks, err := s.split(t, b.group.addresses(t))
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			values := make([]bool, len(c.addresses))
			addrs := make([]Address, len(c.addresses))
			for i, a := range c.addresses {
				values[i] = a.Value()
				addrs[i] = a
			}
			req, err := modbus.NewWriteMultipleCoilsRequest(t.UnitID, c.start, values)
			if err != nil {
				return nil, err
			}
			out = append(out, WriteRequest{ID: uuid.New(), Target: t, Addresses: addrs, Request: req})
		}
	}
	return out, nil
}

// WriteRegistersBuilder composes FC 0x10 writes.
type WriteRegistersBuilder struct {
	builder
	endianness codec.Endianness
	group      group[uint16, RegisterWriter]
}

// NewWriteRegistersBuilder composes register writes against uri/unitID
// unless an address names another target.
func NewWriteRegistersBuilder(uri string, unitID uint8) *WriteRegistersBuilder {
	return &WriteRegistersBuilder{
		builder: builder{target: Target{URI: uri, UnitID: unitID}},
		group:   newGroup[uint16, RegisterWriter](),
	}
}

// Endianness sets the layout for values added after this call through the
// typed methods. Auto follows the process default.
func (b *WriteRegistersBuilder) Endianness(e codec.Endianness) *WriteRegistersBuilder {
	b.endianness = e
	return b
}

func (b *WriteRegistersBuilder) numeric(addr uint16, t codec.Type, value any) *WriteRegistersBuilder {
	a, err := NewWriteRegisterAddress(addr, t, value, b.endianness)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddAddress(a)
}

func (b *WriteRegistersBuilder) Int16(addr uint16, v int16) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeInt16, v)
}

func (b *WriteRegistersBuilder) Uint16(addr uint16, v uint16) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeUint16, v)
}

func (b *WriteRegistersBuilder) Int32(addr uint16, v int32) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeInt32, v)
}

func (b *WriteRegistersBuilder) Uint32(addr uint16, v uint32) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeUint32, v)
}

func (b *WriteRegistersBuilder) Int64(addr uint16, v int64) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeInt64, v)
}

func (b *WriteRegistersBuilder) Uint64(addr uint16, v uint64) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeUint64, v)
}

func (b *WriteRegistersBuilder) Float(addr uint16, v float32) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeFloat, v)
}

func (b *WriteRegistersBuilder) Double(addr uint16, v float64) *WriteRegistersBuilder {
	return b.numeric(addr, codec.TypeDouble, v)
}

// String writes value into byteLength bytes starting at addr, encoded with
// the named charset ("" for UTF-8).
func (b *WriteRegistersBuilder) String(addr uint16, value string, byteLength int, encoding string) *WriteRegistersBuilder {
	a, err := NewStringWriteRegisterAddress(addr, value, byteLength, encoding)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddAddress(a)
}

// AddAddress adds a to the default target.
func (b *WriteRegistersBuilder) AddAddress(a RegisterWriter) *WriteRegistersBuilder {
	return b.AddTo(b.target, a)
}

// AddTo adds a to target t. Writing the same register twice keeps the
// last value.
func (b *WriteRegistersBuilder) AddTo(t Target, a RegisterWriter) *WriteRegistersBuilder {
	if b.check(t) {
		b.group.put(t, a.Address(), a)
	}
	return b
}

// AddRecord adds a described write.
func (b *WriteRegistersBuilder) AddRecord(r Record) *WriteRegistersBuilder {
	t, a, err := r.writeRegister(b.target, b.endianness)
	if err != nil {
		b.fail(err)
		return b
	}
	return b.AddTo(t, a)
}

// AddRecords adds every record in order.
func (b *WriteRegistersBuilder) AddRecords(rs ...Record) *WriteRegistersBuilder {
	for _, r := range rs {
		b.AddRecord(r)
	}
	return b
}

// Build returns one FC 0x10 request per contiguous run of registers.
// Overlapping writes fail with an *OverlapError.
func (b *WriteRegistersBuilder) Build() ([]WriteRequest, error) {
	if err := b.err(); err != nil {
		return nil, err
	}
	s := splitter[RegisterWriter]{fc: modbus.FcWriteMultipleRegisters, max: modbus.MaxWriteRegisters, checkOverlap: true}
	var out []WriteRequest
	for _, t := range b.group.targets() {
		chunks, err := s.split(t, b.group.addresses(t))
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			slots := make(codec.RegisterSlots, len(c.addresses))
			addrs := make([]Address, len(c.addresses))
			for i, a := range c.addresses {
				slots[i] = a.Binary()
				addrs[i] = a
			}
			req, err := modbus.NewWriteMultipleRegistersRequest(t.UnitID, c.start, slots.Bytes())
			if err != nil {
				return nil, err
			}
			out = append(out, WriteRequest{ID: uuid.New(), Target: t, Addresses: addrs, Request: req})
		}
	}
	return out, nil
}
