package compose

import (
	"strconv"

	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// RegisterWriter is a write address that encodes to register bytes.
type RegisterWriter interface {
	Address
	Binary() []byte
}

// WriteCoilAddress sets one coil.
type WriteCoilAddress struct {
	address uint16
	value   bool
	name    string
}

// NewWriteCoilAddress describes writing value to the coil at addr.
func NewWriteCoilAddress(addr uint16, value bool) WriteCoilAddress {
	return WriteCoilAddress{address: addr, value: value, name: strconv.Itoa(int(addr))}
}

// Named returns a copy reported under name.
func (a WriteCoilAddress) Named(name string) WriteCoilAddress {
	a.name = name
	return a
}

func (a WriteCoilAddress) Address() uint16  { return a.address }
func (a WriteCoilAddress) Size() int        { return 1 }
func (a WriteCoilAddress) Type() codec.Type { return codec.TypeBit }
func (a WriteCoilAddress) Name() string     { return a.name }
func (a WriteCoilAddress) Value() bool      { return a.value }

// WriteRegisterAddress writes a numeric value across one or more holding
// registers. The bytes are encoded once, at construction.
type WriteRegisterAddress struct {
	address uint16
	typ     codec.Type
	value   any
	binary  []byte
	name    string
}

// NewWriteRegisterAddress encodes value as typ. Bit and byte types are
// rejected: writing less than a whole register would clobber the rest of
// it. Strings go through NewStringWriteRegisterAddress.
func NewWriteRegisterAddress(addr uint16, typ codec.Type, value any, e codec.Endianness) (WriteRegisterAddress, error) {
	switch typ {
	case codec.TypeBit, codec.TypeByte:
		return WriteRegisterAddress{}, configError("cannot write %s at register %d: partial register writes are not allowed", typ, addr)
	case codec.TypeString:
		return WriteRegisterAddress{}, configError("string write at register %d needs a byte length", addr)
	}
	if value == nil {
		return WriteRegisterAddress{}, configError("missing value for %s write at register %d", typ, addr)
	}
	b, err := codec.Encode(value, typ, e)
	if err != nil {
		return WriteRegisterAddress{}, configError("register %d: %v", addr, err)
	}
	return WriteRegisterAddress{
		address: addr,
		typ:     typ,
		value:   value,
		binary:  b,
		name:    strconv.Itoa(int(addr)),
	}, nil
}

// Named returns a copy reported under name.
func (a WriteRegisterAddress) Named(name string) WriteRegisterAddress {
	a.name = name
	return a
}

func (a WriteRegisterAddress) Address() uint16  { return a.address }
func (a WriteRegisterAddress) Size() int        { return a.typ.Registers() }
func (a WriteRegisterAddress) Type() codec.Type { return a.typ }
func (a WriteRegisterAddress) Name() string     { return a.name }
func (a WriteRegisterAddress) Value() any       { return a.value }

// Binary returns the encoded register bytes.
func (a WriteRegisterAddress) Binary() []byte { return append([]byte(nil), a.binary...) }

// StringWriteRegisterAddress writes fixed-length text.
type StringWriteRegisterAddress struct {
	address    uint16
	value      string
	byteLength int
	encoding   string
	binary     []byte
	name       string
}

// NewStringWriteRegisterAddress lays value out in ceil(byteLength/2)
// registers, zero padded or truncated. byteLength must be within 1-228.
// An empty encoding means UTF-8.
func NewStringWriteRegisterAddress(addr uint16, value string, byteLength int, encoding string) (StringWriteRegisterAddress, error) {
	if byteLength < 1 || byteLength > modbus.MaxStringWriteBytes {
		return StringWriteRegisterAddress{}, configError("string length %d at register %d outside 1-%d", byteLength, addr, modbus.MaxStringWriteBytes)
	}
	b, err := codec.EncodeString(value, codec.StringRegisters(byteLength), encoding)
	if err != nil {
		return StringWriteRegisterAddress{}, configError("register %d: %v", addr, err)
	}
	clear(b[byteLength:])
	return StringWriteRegisterAddress{
		address:    addr,
		value:      value,
		byteLength: byteLength,
		encoding:   encoding,
		binary:     b,
		name:       strconv.Itoa(int(addr)),
	}, nil
}

// Named returns a copy reported under name.
func (a StringWriteRegisterAddress) Named(name string) StringWriteRegisterAddress {
	a.name = name
	return a
}

func (a StringWriteRegisterAddress) Address() uint16  { return a.address }
func (a StringWriteRegisterAddress) Size() int        { return codec.StringRegisters(a.byteLength) }
func (a StringWriteRegisterAddress) Type() codec.Type { return codec.TypeString }
func (a StringWriteRegisterAddress) Name() string     { return a.name }
func (a StringWriteRegisterAddress) Value() string    { return a.value }
func (a StringWriteRegisterAddress) ByteLength() int  { return a.byteLength }

// Binary returns the encoded, padded text.
func (a StringWriteRegisterAddress) Binary() []byte { return append([]byte(nil), a.binary...) }
