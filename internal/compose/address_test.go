package compose

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

func TestAddressSizes(t *testing.T) {
	str, err := NewReadStringAddress(0, 5)
	assert.NilError(t, err)
	i64, err := NewReadRegisterAddress(0, codec.TypeInt64)
	assert.NilError(t, err)
	f, err := NewWriteRegisterAddress(0, codec.TypeFloat, 1.5, codec.Auto)
	assert.NilError(t, err)

	tests := []struct {
		name string
		a    Address
		want int
	}{
		{"coil", NewReadCoilAddress(0), 1},
		{"byte", NewReadByteAddress(0, true), 1},
		{"int64", i64, 4},
		{"float write", f, 2},
		{"odd string", str, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.a.Size(), tt.want)
		})
	}
}

func TestDefaultNames(t *testing.T) {
	bit, err := NewReadBitAddress(7, 3)
	assert.NilError(t, err)
	assert.Equal(t, bit.Name(), "7.3")
	assert.Equal(t, NewReadByteAddress(7, true).Name(), "7.high")
	assert.Equal(t, NewReadByteAddress(7, false).Name(), "7.low")
	assert.Equal(t, NewReadCoilAddress(12).Name(), "12")
	assert.Equal(t, NewWriteCoilAddress(12, true).Named("valve").Name(), "valve")
}

func TestReadRegisterAddressRejectsSpecialTypes(t *testing.T) {
	for _, typ := range []codec.Type{codec.TypeBit, codec.TypeByte, codec.TypeString, "quad"} {
		_, err := NewReadRegisterAddress(0, typ)
		assert.ErrorIs(t, err, modbus.ErrConfiguration, "type %s", typ)
	}
}

func TestWriteRegisterAddress(t *testing.T) {
	a, err := NewWriteRegisterAddress(3, codec.TypeUint32, uint32(0x01020304), codec.BigEndian)
	assert.NilError(t, err)
	assert.DeepEqual(t, a.Binary(), []byte{0x01, 0x02, 0x03, 0x04})
	assert.Equal(t, a.Size(), 2)

	tests := []struct {
		name  string
		typ   codec.Type
		value any
	}{
		{"bit", codec.TypeBit, true},
		{"byte", codec.TypeByte, 1},
		{"string", codec.TypeString, "x"},
		{"missing value", codec.TypeInt16, nil},
		{"out of range", codec.TypeInt16, 40000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriteRegisterAddress(0, tt.typ, tt.value, codec.Auto)
			assert.ErrorIs(t, err, modbus.ErrConfiguration)
		})
	}
}

func TestStringWriteRegisterAddress(t *testing.T) {
	a, err := NewStringWriteRegisterAddress(0, "hello", 10, "")
	assert.NilError(t, err)
	assert.Equal(t, a.Size(), 5)
	assert.DeepEqual(t, a.Binary(), []byte{'h', 'e', 'l', 'l', 'o', 0, 0, 0, 0, 0})

	odd, err := NewStringWriteRegisterAddress(0, "hello", 3, "")
	assert.NilError(t, err)
	assert.DeepEqual(t, odd.Binary(), []byte{'h', 'e', 'l', 0})

	for _, n := range []int{0, -1, modbus.MaxStringWriteBytes + 1} {
		_, err := NewStringWriteRegisterAddress(0, "hello", n, "")
		assert.ErrorIs(t, err, modbus.ErrConfiguration, "byteLength %d", n)
	}
}
