package compose

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// Address is one logical value at one coil or register address. Size is
// in registers for register addresses and 1 for coils, and is fully
// determined by the type.
type Address interface {
	Address() uint16
	Size() int
	Type() codec.Type
	Name() string
}

// ReadAddress can extract its value from a parsed read response.
type ReadAddress interface {
	Address
	Extract(resp modbus.Response) (any, error)
}

// ValueTransform post-processes a successfully extracted value.
type ValueTransform func(value any) (any, error)

// ErrorTransform handles a failed extraction. Returning a nil error
// substitutes the returned value and suppresses the failure.
type ErrorTransform func(err error) (any, error)

// ReadOption configures a read address.
type ReadOption func(*readConfig)

type readConfig struct {
	name       string
	endianness codec.Endianness
	encoding   string
	onValue    ValueTransform
	onError    ErrorTransform
}

// WithName sets the key the value is reported under.
func WithName(name string) ReadOption {
	return func(c *readConfig) { c.name = name }
}

// WithEndianness overrides the process default for multi-register values.
func WithEndianness(e codec.Endianness) ReadOption {
	return func(c *readConfig) { c.endianness = e }
}

// WithEncoding sets the IANA charset of a string address.
func WithEncoding(charset string) ReadOption {
	return func(c *readConfig) { c.encoding = charset }
}

// WithValueTransform applies f to every successfully extracted value.
func WithValueTransform(f ValueTransform) ReadOption {
	return func(c *readConfig) { c.onValue = f }
}

// WithErrorTransform installs a fallback for failed extractions.
func WithErrorTransform(f ErrorTransform) ReadOption {
	return func(c *readConfig) { c.onError = f }
}

func newReadConfig(defaultName string, opts []ReadOption) readConfig {
	c := readConfig{name: defaultName}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// finish applies the transforms. A failing value transform is treated like
// a failed extraction. Without an error transform the failure propagates
// as ErrExtraction.
func (c readConfig) finish(value any, err error) (any, error) {
	if err == nil && c.onValue != nil {
		value, err = c.onValue(value)
	}
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, modbus.ErrExtraction) {
		err = fmt.Errorf("%w: %s: %w", modbus.ErrExtraction, c.name, err)
	}
	if c.onError != nil {
		return c.onError(err)
	}
	return nil, err
}

// offset returns the position of addr relative to the response's start
// address.
func offset(resp modbus.ReadResponse, addr uint16) (int, error) {
	off := int(addr) - int(resp.StartAddress())
	if off < 0 {
		return 0, fmt.Errorf("%w: address %d is before response start %d", modbus.ErrExtraction, addr, resp.StartAddress())
	}
	return off, nil
}

// ReadCoilAddress reads one coil or discrete input.
type ReadCoilAddress struct {
	address uint16
	cfg     readConfig
}

// NewReadCoilAddress describes the coil at addr. The default name is the
// decimal address.
func NewReadCoilAddress(addr uint16, opts ...ReadOption) ReadCoilAddress {
	return ReadCoilAddress{address: addr, cfg: newReadConfig(strconv.Itoa(int(addr)), opts)}
}

func (a ReadCoilAddress) Address() uint16  { return a.address }
func (a ReadCoilAddress) Size() int        { return 1 }
func (a ReadCoilAddress) Type() codec.Type { return codec.TypeBit }
func (a ReadCoilAddress) Name() string     { return a.cfg.name }

type bitResponse interface {
	modbus.ReadResponse
	IsCoilSet(offset int) (bool, error)
}

// Extract returns the coil state as a bool.
func (a ReadCoilAddress) Extract(resp modbus.Response) (any, error) {
	return a.cfg.finish(a.extract(resp))
}

func (a ReadCoilAddress) extract(resp modbus.Response) (any, error) {
	bits, ok := resp.(bitResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %s carries no coil data", modbus.ErrExtraction, resp.Function())
	}
	off, err := offset(bits, a.address)
	if err != nil {
		return nil, err
	}
	set, err := bits.IsCoilSet(off)
	if err != nil {
		return nil, fmt.Errorf("%w: coil %d: %w", modbus.ErrExtraction, a.address, err)
	}
	return set, nil
}

// ReadRegisterAddress reads a value from one or more holding or input
// registers.
type ReadRegisterAddress struct {
	address    uint16
	typ        codec.Type
	size       int
	bit        int  // bit type only
	firstByte  bool // byte type only
	byteLength int  // string type only
	cfg        readConfig
}

// NewReadRegisterAddress describes a numeric value (int16 through double)
// at addr. The default name is the decimal address.
func NewReadRegisterAddress(addr uint16, typ codec.Type, opts ...ReadOption) (ReadRegisterAddress, error) {
	switch typ {
	case codec.TypeBit, codec.TypeByte, codec.TypeString:
		return ReadRegisterAddress{}, configError("%s read at %d needs its dedicated constructor", typ, addr)
	}
	if typ.Registers() == 0 {
		return ReadRegisterAddress{}, configError("unknown data type %q", typ)
	}
	return ReadRegisterAddress{
		address: addr,
		typ:     typ,
		size:    typ.Registers(),
		cfg:     newReadConfig(strconv.Itoa(int(addr)), opts),
	}, nil
}

// NewReadBitAddress describes bit (0-15, 0 = least significant) of the
// register at addr. The default name is "addr.bit".
func NewReadBitAddress(addr uint16, bit int, opts ...ReadOption) (ReadRegisterAddress, error) {
	if bit < 0 || bit > 15 {
		return ReadRegisterAddress{}, configError("bit %d of register %d out of range 0-15", bit, addr)
	}
	return ReadRegisterAddress{
		address: addr,
		typ:     codec.TypeBit,
		size:    1,
		bit:     bit,
		cfg:     newReadConfig(fmt.Sprintf("%d.%d", addr, bit), opts),
	}, nil
}

// NewReadByteAddress describes one byte of the register at addr: the high
// (first on the wire) byte when firstByte is set, else the low byte.
func NewReadByteAddress(addr uint16, firstByte bool, opts ...ReadOption) ReadRegisterAddress {
	half := "low"
	if firstByte {
		half = "high"
	}
	return ReadRegisterAddress{
		address:   addr,
		typ:       codec.TypeByte,
		size:      1,
		firstByte: firstByte,
		cfg:       newReadConfig(fmt.Sprintf("%d.%s", addr, half), opts),
	}
}

// NewReadStringAddress describes byteLength bytes of text starting at addr.
// The text ends at the first NUL byte.
func NewReadStringAddress(addr uint16, byteLength int, opts ...ReadOption) (ReadRegisterAddress, error) {
	if byteLength < 1 || byteLength > 2*modbus.MaxReadRegisters {
		return ReadRegisterAddress{}, configError("string length %d at %d outside 1-%d", byteLength, addr, 2*modbus.MaxReadRegisters)
	}
	return ReadRegisterAddress{
		address:    addr,
		typ:        codec.TypeString,
		size:       codec.StringRegisters(byteLength),
		byteLength: byteLength,
		cfg:        newReadConfig(strconv.Itoa(int(addr)), opts),
	}, nil
}

func (a ReadRegisterAddress) Address() uint16  { return a.address }
func (a ReadRegisterAddress) Size() int        { return a.size }
func (a ReadRegisterAddress) Type() codec.Type { return a.typ }
func (a ReadRegisterAddress) Name() string     { return a.cfg.name }

type registerResponse interface {
	modbus.ReadResponse
	RegisterBytes() []byte
}

// Extract decodes the value from the register response.
func (a ReadRegisterAddress) Extract(resp modbus.Response) (any, error) {
	return a.cfg.finish(a.extract(resp))
}

func (a ReadRegisterAddress) extract(resp modbus.Response) (any, error) {
	regs, ok := resp.(registerResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %s carries no register data", modbus.ErrExtraction, resp.Function())
	}
	off, err := offset(regs, a.address)
	if err != nil {
		return nil, err
	}
	data := regs.RegisterBytes()
	start, end := off*2, (off+a.size)*2
	if end > len(data) {
		return nil, fmt.Errorf("%w: register %d (%s) needs bytes %d-%d, response has %d",
			modbus.ErrExtraction, a.address, a.typ, start, end, len(data))
	}
	raw := data[start:end]

	switch a.typ {
	case codec.TypeBit:
		word, err := codec.RegisterWord(raw, 0)
		if err != nil {
			return nil, err
		}
		return codec.CheckBit16(word, a.bit)
	case codec.TypeByte:
		if a.firstByte {
			return raw[0], nil
		}
		return raw[1], nil
	case codec.TypeString:
		return codec.DecodeString(raw[:min(a.byteLength, len(raw))], a.cfg.encoding)
	default:
		return codec.Decode(raw, a.typ, a.cfg.endianness)
	}
}
