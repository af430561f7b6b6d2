package compose

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/tturner/mbcompose/internal/modbus"
)

const testURI = "tcp://127.0.0.1:502"

func readRange(t *testing.T, r modbus.Request) (uint16, int) {
	t.Helper()
	return modbus.RequestStart(r), modbus.RequestQuantity(r)
}

func TestWriteCoilsLastWriteWins(t *testing.T) {
	reqs, err := NewWriteCoilsBuilder(testURI, 1).
		Coil(4, true).
		Coil(4, false).
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 1)

	w, ok := reqs[0].Request.(*modbus.WriteMultipleCoilsRequest)
	assert.Assert(t, ok)
	assert.DeepEqual(t, w.Coils, []bool{false})
	assert.Equal(t, w.StartAddress, uint16(4))
}

func TestReadRegistersMerge(t *testing.T) {
	reqs, err := NewReadHoldingRegistersBuilder(testURI, 1).
		Uint16(0).
		Uint16(1).
		Float(2).
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 1)

	start, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, start, uint16(0))
	assert.Equal(t, qty, 4)
	assert.Equal(t, len(reqs[0].Addresses), 3)
	assert.Equal(t, reqs[0].Request.Function(), modbus.FcReadHoldingRegisters)
}

func TestReadRegistersGap(t *testing.T) {
	reqs, err := NewReadInputRegistersBuilder(testURI, 1).
		Uint16(10).
		Uint16(0).
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	start, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, start, uint16(0))
	assert.Equal(t, qty, 1)
	start, _ = readRange(t, reqs[1].Request)
	assert.Equal(t, start, uint16(10))
	assert.Equal(t, reqs[1].Request.Function(), modbus.FcReadInputRegisters)
}

func TestReadRegistersOverlapJoins(t *testing.T) {
	reqs, err := NewReadHoldingRegistersBuilder(testURI, 1).
		Bit(5, 0).
		Bit(5, 1).
		Uint16(5, WithName("word")).
		Int32(4).
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 1)

	start, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, start, uint16(4))
	assert.Equal(t, qty, 2)
	assert.Equal(t, len(reqs[0].Addresses), 4)
}

func TestReadRegistersCap(t *testing.T) {
	b := NewReadHoldingRegistersBuilder(testURI, 1)
	for i := range 126 {
		b.Uint16(uint16(i))
	}
	reqs, err := b.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	start, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, start, uint16(0))
	assert.Equal(t, qty, modbus.MaxReadRegisters)
	start, qty = readRange(t, reqs[1].Request)
	assert.Equal(t, start, uint16(125))
	assert.Equal(t, qty, 1)
}

func TestReadRegistersCapMultiRegister(t *testing.T) {
	b := NewReadHoldingRegistersBuilder(testURI, 1)
	for addr := 0; addr <= 124; addr += 2 {
		b.Int32(uint16(addr))
	}
	reqs, err := b.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	start, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, start, uint16(0))
	assert.Equal(t, qty, 124)
	start, qty = readRange(t, reqs[1].Request)
	assert.Equal(t, start, uint16(124))
	assert.Equal(t, qty, 2)
}

func TestReadCoilsCap(t *testing.T) {
	b := NewReadCoilsBuilder(testURI, 1)
	for i := range 2001 {
		b.Coil(uint16(i))
	}
	reqs, err := b.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)
	_, qty := readRange(t, reqs[0].Request)
	assert.Equal(t, qty, modbus.MaxReadBits)
}

func TestWriteRegistersCap(t *testing.T) {
	b := NewWriteRegistersBuilder(testURI, 1)
	for i := range 124 {
		b.Uint16(uint16(i), uint16(i))
	}
	reqs, err := b.Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	w := reqs[0].Request.(*modbus.WriteMultipleRegistersRequest)
	assert.Equal(t, w.Quantity(), uint16(modbus.MaxWriteRegisters))
	assert.Equal(t, len(reqs[1].Addresses), 1)
}

func TestWriteRegistersOverlap(t *testing.T) {
	_, err := NewWriteRegistersBuilder(testURI, 1).
		Int32(255, 1).
		Uint16(256, 2).
		Build()
	assert.ErrorIs(t, err, modbus.ErrOverlap)

	var overlap *OverlapError
	assert.Assert(t, errors.As(err, &overlap))
	assert.Equal(t, overlap.First.Address(), uint16(255))
	assert.Equal(t, overlap.Second.Address(), uint16(256))
	assert.ErrorContains(t, err, "int32")
}

func TestWriteRegistersPayload(t *testing.T) {
	reqs, err := NewWriteRegistersBuilder(testURI, 1).
		Uint16(0, 0x0102).
		String(1, "hi", 2, "").
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 1)

	w := reqs[0].Request.(*modbus.WriteMultipleRegistersRequest)
	assert.DeepEqual(t, w.Data, []byte{0x01, 0x02, 'h', 'i'})
}

func TestTargetsSorted(t *testing.T) {
	reqs, err := NewReadCoilsBuilder("tcp://b:502", 2).
		Coil(0).
		AddTo(Target{URI: "tcp://a:502", UnitID: 9}, NewReadCoilAddress(0)).
		AddTo(Target{URI: "tcp://b:502", UnitID: 1}, NewReadCoilAddress(0)).
		Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 3)
	assert.Equal(t, reqs[0].Target.String(), "tcp://a:502||unitId=9")
	assert.Equal(t, reqs[1].Target.String(), "tcp://b:502||unitId=1")
	assert.Equal(t, reqs[2].Target.String(), "tcp://b:502||unitId=2")
	assert.Equal(t, reqs[2].Request.Header().UnitID, uint8(2))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
	}{
		{"empty uri", func() error {
			_, err := NewReadCoilsBuilder("", 1).Coil(0).Build()
			return err
		}},
		{"string length zero", func() error {
			_, err := NewWriteRegistersBuilder(testURI, 1).String(0, "x", 0, "").Build()
			return err
		}},
		{"bit out of range", func() error {
			_, err := NewReadHoldingRegistersBuilder(testURI, 1).Bit(0, 16).Build()
			return err
		}},
		{"address past end", func() error {
			_, err := NewReadHoldingRegistersBuilder(testURI, 1).Int32(0xFFFF).Build()
			return err
		}},
		{"unknown charset", func() error {
			_, err := NewWriteRegistersBuilder(testURI, 1).String(0, "x", 2, "no-such-charset").Build()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.build(), modbus.ErrConfiguration)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	reqs, err := NewWriteCoilsBuilder(testURI, 1).Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 0)
}

func TestComposedIDsDistinct(t *testing.T) {
	reqs, err := NewReadCoilsBuilder(testURI, 1).Coil(0).Coil(100).Build()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)
	assert.Assert(t, reqs[0].ID != reqs[1].ID)
}
