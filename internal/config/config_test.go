package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/errors"
	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

const job = `
defaults:
  uri: tcp://10.0.0.5:502
  unitId: 3
  endianness: big_endian
transport:
  timeout_ms: 750
reads:
  - function: holding_registers
    addresses:
      - {address: 0, type: uint16, name: temperature}
      - {address: 1, type: int32, name: flow}
  - function: coils
    uri: tcp://10.0.0.6
    addresses:
      - {address: 4, name: pump}
writes:
  - function: registers
    addresses:
      - {address: 10, type: float, value: 1.5}
  - function: coils
    unitId: 9
    addresses:
      - {address: 2, value: true}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(job))
	assert.NilError(t, err)

	assert.Equal(t, cfg.Defaults.URI, "tcp://10.0.0.5:502")
	assert.Equal(t, cfg.Defaults.UnitID, 3)
	assert.Equal(t, cfg.Endianness(), codec.BigEndian)
	assert.Equal(t, len(cfg.Reads), 2)
	assert.Equal(t, len(cfg.Writes), 2)
	assert.Equal(t, cfg.Transport.Backend, BackendNative)

	opts := cfg.TransportOptions()
	assert.Equal(t, opts.Timeout, 750*time.Millisecond)
	assert.Equal(t, opts.RetryAttempts, 3)
}

func TestReadRequests(t *testing.T) {
	cfg, err := Parse([]byte(job))
	assert.NilError(t, err)

	reqs, err := cfg.ReadRequests()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	regs := reqs[0]
	assert.Equal(t, regs.Target, compose.Target{URI: "tcp://10.0.0.5:502", UnitID: 3})
	assert.Equal(t, regs.Request.Function(), modbus.FcReadHoldingRegisters)
	assert.Equal(t, modbus.RequestQuantity(regs.Request), 3)

	coils := reqs[1]
	assert.Equal(t, coils.Target, compose.Target{URI: "tcp://10.0.0.6", UnitID: 3})
	assert.Equal(t, coils.Request.Function(), modbus.FcReadCoils)
	assert.Equal(t, modbus.RequestStart(coils.Request), uint16(4))
}

func TestReadRequestsUseDefaultEndianness(t *testing.T) {
	cfg, err := Parse([]byte(job))
	assert.NilError(t, err)
	reqs, err := cfg.ReadRequests()
	assert.NilError(t, err)

	frame := modbus.Frame{
		MBAP:         modbus.MBAPHeader{TransactionID: 1, UnitID: 3},
		FunctionCode: modbus.FcReadHoldingRegisters,
		Data:         []byte{6, 0x00, 0x15, 0xFF, 0xFF, 0xFF, 0xFE},
	}
	res, err := reqs[0].Parse(frame.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, res.Values["temperature"], uint16(21))
	assert.Equal(t, res.Values["flow"], int32(-2))
}

func TestWriteRequests(t *testing.T) {
	cfg, err := Parse([]byte(job))
	assert.NilError(t, err)

	reqs, err := cfg.WriteRequests()
	assert.NilError(t, err)
	assert.Equal(t, len(reqs), 2)

	regs, ok := reqs[0].Request.(*modbus.WriteMultipleRegistersRequest)
	assert.Assert(t, ok, "got %T", reqs[0].Request)
	assert.Equal(t, regs.StartAddress, uint16(10))
	// 1.5 as big-endian float32
	assert.DeepEqual(t, regs.Data, []byte{0x3F, 0xC0, 0x00, 0x00})

	assert.Equal(t, reqs[1].Target.UnitID, uint8(9))
	assert.Equal(t, reqs[1].Request.Function(), modbus.FcWriteMultipleCoils)
}

func TestWriteRequestsOverlap(t *testing.T) {
	cfg, err := Parse([]byte(`
defaults: {uri: tcp://plc, unitId: 1}
writes:
  - function: registers
    addresses:
      - {address: 10, type: uint32, value: 1}
      - {address: 11, type: uint16, value: 2}
`))
	assert.NilError(t, err)

	_, err = cfg.WriteRequests()
	assert.Assert(t, stderrors.Is(err, modbus.ErrOverlap), "got %v", err)
	assert.ErrorContains(t, err, "writes[0]")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{
			name: "empty job",
			yaml: `defaults: {uri: tcp://plc}`,
			err:  "no reads or writes",
		},
		{
			name: "unknown read function",
			yaml: `
defaults: {uri: tcp://plc}
reads: [{function: registers, addresses: [{address: 0}]}]`,
			err: `unknown function "registers"`,
		},
		{
			name: "missing uri",
			yaml: `reads: [{function: coils, addresses: [{address: 0}]}]`,
			err:  "no uri",
		},
		{
			name: "bad scheme",
			yaml: `reads: [{function: coils, uri: "udp://plc", addresses: [{address: 0}]}]`,
			err:  "unsupported transport scheme",
		},
		{
			name: "no addresses",
			yaml: `
defaults: {uri: tcp://plc}
reads: [{function: coils, addresses: []}]`,
			err: "no addresses",
		},
		{
			name: "write without value",
			yaml: `
defaults: {uri: tcp://plc}
writes: [{function: coils, addresses: [{address: 0}]}]`,
			err: "value is required",
		},
		{
			name: "unit id out of range",
			yaml: `
defaults: {uri: tcp://plc, unitId: 300}
reads: [{function: coils, addresses: [{address: 0}]}]`,
			err: "outside 0-255",
		},
		{
			name: "unknown endianness",
			yaml: `
defaults: {uri: tcp://plc, endianness: middle}
reads: [{function: coils, addresses: [{address: 0}]}]`,
			err: "unknown endianness",
		},
		{
			name: "unknown backend",
			yaml: `
defaults: {uri: tcp://plc}
transport: {backend: serial}
reads: [{function: coils, addresses: [{address: 0}]}]`,
			err: "unknown backend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"), false)
		var ufe errors.UserFriendlyError
		assert.Assert(t, stderrors.As(err, &ufe), "got %T", err)
		assert.Assert(t, is.Contains(ufe.Error(), "config file not found"))
	})

	t.Run("auto create", func(t *testing.T) {
		path := filepath.Join(dir, "jobs.yaml")
		cfg, err := Load(path, true)
		assert.NilError(t, err)
		assert.DeepEqual(t, cfg, CreateDefaultConfig())

		_, err = os.Stat(path)
		assert.NilError(t, err)

		reqs, err := cfg.ReadRequests()
		assert.NilError(t, err)
		assert.Equal(t, len(reqs), 2)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		assert.NilError(t, os.WriteFile(path, []byte("reads: [unterminated"), 0o644))
		_, err := Load(path, false)
		assert.ErrorContains(t, err, "parse YAML")
	})
}
