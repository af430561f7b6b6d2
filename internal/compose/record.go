package compose

import (
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// Record describes one address in data form, as loaded from a job file.
// Unset URI and UnitID fall back to the builder's target.
type Record struct {
	Address    *int   `yaml:"address" json:"address"`
	Type       string `yaml:"type,omitempty" json:"type,omitempty"`
	Value      any    `yaml:"value,omitempty" json:"value,omitempty"`
	Length     int    `yaml:"length,omitempty" json:"length,omitempty"`
	URI        string `yaml:"uri,omitempty" json:"uri,omitempty"`
	UnitID     *int   `yaml:"unitId,omitempty" json:"unitId,omitempty"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Bit        *int   `yaml:"bit,omitempty" json:"bit,omitempty"`
	FirstByte  bool   `yaml:"firstByte,omitempty" json:"firstByte,omitempty"`
	Endianness string `yaml:"endianness,omitempty" json:"endianness,omitempty"`
	Encoding   string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
}

func (r Record) target(def Target) (Target, error) {
	t := def
	if r.URI != "" {
		t.URI = r.URI
	}
	if r.UnitID != nil {
		if *r.UnitID < 0 || *r.UnitID > 255 {
			return Target{}, configError("unit id %d outside 0-255", *r.UnitID)
		}
		t.UnitID = uint8(*r.UnitID)
	}
	return t, t.validate()
}

func (r Record) address() (uint16, error) {
	if r.Address == nil {
		return 0, configError("record has no address")
	}
	if *r.Address < 0 || *r.Address > 0xFFFF {
		return 0, configError("address %d outside 0-65535", *r.Address)
	}
	return uint16(*r.Address), nil
}

func (r Record) endianness() (codec.Endianness, error) {
	if r.Endianness == "" {
		return codec.Auto, nil
	}
	e, err := codec.ParseEndianness(r.Endianness)
	if err != nil {
		return 0, configError("%v", err)
	}
	return e, nil
}

// dataType returns the record's type, def when unset.
func (r Record) dataType(def codec.Type) (codec.Type, error) {
	if r.Type == "" {
		return def, nil
	}
	t, err := codec.ParseType(r.Type)
	if err != nil {
		return "", configError("%v", err)
	}
	return t, nil
}

func (r Record) readOptions() ([]ReadOption, error) {
	e, err := r.endianness()
	if err != nil {
		return nil, err
	}
	opts := []ReadOption{WithEndianness(e), WithEncoding(r.Encoding)}
	if r.Name != "" {
		opts = append(opts, WithName(r.Name))
	}
	return opts, nil
}

func (r Record) readCoil(def Target) (Target, ReadCoilAddress, error) {
	t, err := r.target(def)
	if err != nil {
		return Target{}, ReadCoilAddress{}, err
	}
	addr, err := r.address()
	if err != nil {
		return Target{}, ReadCoilAddress{}, err
	}
	if typ, err := r.dataType(codec.TypeBit); err != nil || typ != codec.TypeBit {
		return Target{}, ReadCoilAddress{}, configError("coil %d must have type bit, got %q", addr, r.Type)
	}
	opts, err := r.readOptions()
	if err != nil {
		return Target{}, ReadCoilAddress{}, err
	}
	return t, NewReadCoilAddress(addr, opts...), nil
}

func (r Record) readRegister(def Target) (Target, ReadRegisterAddress, error) {
	t, err := r.target(def)
	if err != nil {
		return Target{}, ReadRegisterAddress{}, err
	}
	addr, err := r.address()
	if err != nil {
		return Target{}, ReadRegisterAddress{}, err
	}
	typ, err := r.dataType(codec.TypeUint16)
	if err != nil {
		return Target{}, ReadRegisterAddress{}, err
	}
	opts, err := r.readOptions()
	if err != nil {
		return Target{}, ReadRegisterAddress{}, err
	}

	var a ReadRegisterAddress
	switch typ {
	case codec.TypeBit:
		if r.Bit == nil {
			return Target{}, ReadRegisterAddress{}, configError("bit read at %d has no bit number", addr)
		}
		a, err = NewReadBitAddress(addr, *r.Bit, opts...)
	case codec.TypeByte:
		a = NewReadByteAddress(addr, r.FirstByte, opts...)
	case codec.TypeString:
		a, err = NewReadStringAddress(addr, r.Length, opts...)
	default:
		a, err = NewReadRegisterAddress(addr, typ, opts...)
	}
	if err != nil {
		return Target{}, ReadRegisterAddress{}, err
	}
	return t, a, nil
}

func (r Record) writeCoil(def Target) (Target, WriteCoilAddress, error) {
	t, err := r.target(def)
	if err != nil {
		return Target{}, WriteCoilAddress{}, err
	}
	addr, err := r.address()
	if err != nil {
		return Target{}, WriteCoilAddress{}, err
	}
	var on bool
	switch v := r.Value.(type) {
	case bool:
		on = v
	case int:
		if v != 0 && v != 1 {
			return Target{}, WriteCoilAddress{}, configError("coil %d value %d is not 0 or 1", addr, v)
		}
		on = v == 1
	case nil:
		return Target{}, WriteCoilAddress{}, configError("missing value for coil %d", addr)
	default:
		return Target{}, WriteCoilAddress{}, configError("coil %d value %v is not a boolean", addr, r.Value)
	}
	a := NewWriteCoilAddress(addr, on)
	if r.Name != "" {
		a = a.Named(r.Name)
	}
	return t, a, nil
}

func (r Record) writeRegister(def Target, defEndianness codec.Endianness) (Target, RegisterWriter, error) {
	t, err := r.target(def)
	if err != nil {
		return Target{}, nil, err
	}
	addr, err := r.address()
	if err != nil {
		return Target{}, nil, err
	}
	typ, err := r.dataType(codec.TypeUint16)
	if err != nil {
		return Target{}, nil, err
	}

	if typ == codec.TypeString {
		s, ok := r.Value.(string)
		if !ok {
			return Target{}, nil, configError("string write at %d needs a string value, got %T", addr, r.Value)
		}
		length := r.Length
		if length == 0 {
			length = len(s)
		}
		a, err := NewStringWriteRegisterAddress(addr, s, length, r.Encoding)
		if err != nil {
			return Target{}, nil, err
		}
		if r.Name != "" {
			a = a.Named(r.Name)
		}
		return t, a, nil
	}

	e := defEndianness
	if r.Endianness != "" {
		if e, err = r.endianness(); err != nil {
			return Target{}, nil, err
		}
	}
	a, err := NewWriteRegisterAddress(addr, typ, r.Value, e)
	if err != nil {
		return Target{}, nil, err
	}
	if r.Name != "" {
		a = a.Named(r.Name)
	}
	return t, a, nil
}
