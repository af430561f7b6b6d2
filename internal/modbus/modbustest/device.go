// Package modbustest provides an in-memory Modbus/TCP device for tests.
//
// The device holds the four Modbus address spaces and answers request
// frames the way a conforming device would, including exception responses
// for out-of-range addresses and illegal quantities.
package modbustest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/tturner/mbcompose/internal/modbus"
)

// Device holds the four Modbus address spaces:
//   - Coils: read-write single-bit, FC 1/5/15
//   - Discrete inputs: read-only single-bit, FC 2
//   - Input registers: read-only 16-bit, FC 4
//   - Holding registers: read-write 16-bit, FC 3/6/16/22/23
type Device struct {
	mu               sync.RWMutex
	coils            []bool
	discreteInputs   []bool
	inputRegisters   []uint16
	holdingRegisters []uint16

	forced   map[modbus.FunctionCode]modbus.ExceptionCode
	requests []modbus.Frame
}

// Config sizes the address spaces.
type Config struct {
	CoilCount            int
	DiscreteInputCount   int
	InputRegisterCount   int
	HoldingRegisterCount int
}

// DefaultConfig returns address spaces large enough for any single request
// at any start address below 1000.
func DefaultConfig() Config {
	return Config{
		CoilCount:            4000,
		DiscreteInputCount:   4000,
		InputRegisterCount:   1200,
		HoldingRegisterCount: 1200,
	}
}

// NewDevice creates a device with zeroed address spaces.
func NewDevice(cfg Config) *Device {
	return &Device{
		coils:            make([]bool, cfg.CoilCount),
		discreteInputs:   make([]bool, cfg.DiscreteInputCount),
		inputRegisters:   make([]uint16, cfg.InputRegisterCount),
		holdingRegisters: make([]uint16, cfg.HoldingRegisterCount),
		forced:           make(map[modbus.FunctionCode]modbus.ExceptionCode),
	}
}

// --- Accessors for test setup and assertions ---

// SetCoil sets a single coil.
func (d *Device) SetCoil(addr int, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return setAt(d.coils, "coil", addr, value)
}

// SetDiscreteInput sets a single discrete input.
func (d *Device) SetDiscreteInput(addr int, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return setAt(d.discreteInputs, "discrete input", addr, value)
}

// SetInputRegister sets a single input register.
func (d *Device) SetInputRegister(addr int, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return setAt(d.inputRegisters, "input register", addr, value)
}

// SetHoldingRegisters stores raw big-endian register bytes starting at addr,
// so values encoded by the codec can be placed without reinterpreting them.
func (d *Device) SetHoldingRegisters(addr int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i+1 < len(data); i += 2 {
		if err := setAt(d.holdingRegisters, "holding register", addr+i/2, binary.BigEndian.Uint16(data[i:])); err != nil {
			return err
		}
	}
	return nil
}

// SetHoldingRegister sets a single holding register.
func (d *Device) SetHoldingRegister(addr int, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return setAt(d.holdingRegisters, "holding register", addr, value)
}

// HoldingRegister reads a single holding register.
func (d *Device) HoldingRegister(addr int) (uint16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if addr < 0 || addr >= len(d.holdingRegisters) {
		return 0, fmt.Errorf("holding register address %d out of range", addr)
	}
	return d.holdingRegisters[addr], nil
}

// Coil reads a single coil.
func (d *Device) Coil(addr int) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if addr < 0 || addr >= len(d.coils) {
		return false, fmt.Errorf("coil address %d out of range", addr)
	}
	return d.coils[addr], nil
}

// FailWith makes every request with function fc answer with exception code.
func (d *Device) FailWith(fc modbus.FunctionCode, code modbus.ExceptionCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forced[fc] = code
}

// Requests returns every request frame the device has decoded.
func (d *Device) Requests() []modbus.Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]modbus.Frame(nil), d.requests...)
}

func setAt[T any](space []T, what string, addr int, value T) error {
	if addr < 0 || addr >= len(space) {
		return fmt.Errorf("%s address %d out of range (0-%d)", what, addr, len(space)-1)
	}
	space[addr] = value
	return nil
}

// --- Frame handling ---

// Handle answers one request frame. Frames that cannot be decoded get no
// answer (nil), as a device would drop them.
func (d *Device) Handle(frame []byte) []byte {
	req, err := modbus.DecodeFrame(frame)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	d.requests = append(d.requests, req)
	code, forced := d.forced[req.FunctionCode]
	d.mu.Unlock()

	if forced {
		return exception(req, code).Bytes()
	}
	return d.HandleFrame(req).Bytes()
}

// HandleFrame answers a decoded request.
func (d *Device) HandleFrame(req modbus.Frame) modbus.Frame {
	switch req.FunctionCode {
	case modbus.FcReadCoils:
		return d.readBits(req, d.coils)
	case modbus.FcReadDiscreteInputs:
		return d.readBits(req, d.discreteInputs)
	case modbus.FcReadHoldingRegisters:
		return d.readRegisters(req, d.holdingRegisters)
	case modbus.FcReadInputRegisters:
		return d.readRegisters(req, d.inputRegisters)
	case modbus.FcWriteSingleCoil:
		return d.writeSingleCoil(req)
	case modbus.FcWriteSingleRegister:
		return d.writeSingleRegister(req)
	case modbus.FcWriteMultipleCoils:
		return d.writeMultipleCoils(req)
	case modbus.FcWriteMultipleRegisters:
		return d.writeMultipleRegisters(req)
	case modbus.FcMaskWriteRegister:
		return d.maskWriteRegister(req)
	case modbus.FcReadWriteMultipleRegisters:
		return d.readWriteMultipleRegisters(req)
	default:
		return exception(req, modbus.ExceptionIllegalFunction)
	}
}

// Serve answers requests read from conn until ctx is cancelled or the peer
// closes the connection. A clean close returns nil.
func (d *Device) Serve(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	header := make([]byte, modbus.MBAPHeaderSize-1)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return closedOK(ctx, err)
		}
		length := int(binary.BigEndian.Uint16(header[4:6]))
		frame := make([]byte, len(header)+length)
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[len(header):]); err != nil {
			return closedOK(ctx, err)
		}
		resp := d.Handle(frame)
		if resp == nil {
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			return closedOK(ctx, err)
		}
	}
}

func closedOK(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

// --- Read handlers ---

func (d *Device) readBits(req modbus.Frame, space []bool) modbus.Frame {
	start, quantity, ok := addrQty(req)
	if !ok || quantity < 1 || quantity > modbus.MaxReadBits {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if start+quantity > len(space) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	byteCount := (quantity + 7) / 8
	data := make([]byte, 1+byteCount)
	data[0] = byte(byteCount)
	for i := 0; i < quantity; i++ {
		if space[start+i] {
			data[1+i/8] |= 1 << (i % 8)
		}
	}
	return reply(req, data)
}

func (d *Device) readRegisters(req modbus.Frame, space []uint16) modbus.Frame {
	start, quantity, ok := addrQty(req)
	if !ok || quantity < 1 || quantity > modbus.MaxReadRegisters {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if start+quantity > len(space) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	return reply(req, registerPayload(space[start:start+quantity]))
}

func registerPayload(regs []uint16) []byte {
	data := make([]byte, 1, 1+2*len(regs))
	data[0] = byte(2 * len(regs))
	for _, r := range regs {
		data = binary.BigEndian.AppendUint16(data, r)
	}
	return data
}

// --- Write handlers ---

func (d *Device) writeSingleCoil(req modbus.Frame) modbus.Frame {
	addr, val, ok := addrQty(req)
	if !ok || (val != 0x0000 && val != 0xFF00) {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if addr >= len(d.coils) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	d.coils[addr] = val == 0xFF00
	return reply(req, req.Data[:4])
}

func (d *Device) writeSingleRegister(req modbus.Frame) modbus.Frame {
	addr, val, ok := addrQty(req)
	if !ok {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if addr >= len(d.holdingRegisters) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	d.holdingRegisters[addr] = uint16(val)
	return reply(req, req.Data[:4])
}

func (d *Device) writeMultipleCoils(req modbus.Frame) modbus.Frame {
	start, quantity, ok := addrQty(req)
	if !ok || len(req.Data) < 5 || quantity < 1 || quantity > modbus.MaxWriteCoils {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}
	byteCount := int(req.Data[4])
	if byteCount != (quantity+7)/8 || len(req.Data) < 5+byteCount {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if start+quantity > len(d.coils) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	for i := 0; i < quantity; i++ {
		d.coils[start+i] = req.Data[5+i/8]&(1<<(i%8)) != 0
	}
	return reply(req, req.Data[:4])
}

func (d *Device) writeMultipleRegisters(req modbus.Frame) modbus.Frame {
	start, quantity, ok := addrQty(req)
	if !ok || len(req.Data) < 5 || quantity < 1 || quantity > modbus.MaxWriteRegisters {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}
	byteCount := int(req.Data[4])
	if byteCount != quantity*2 || len(req.Data) < 5+byteCount {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if start+quantity > len(d.holdingRegisters) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	for i := 0; i < quantity; i++ {
		d.holdingRegisters[start+i] = binary.BigEndian.Uint16(req.Data[5+i*2:])
	}
	return reply(req, req.Data[:4])
}

func (d *Device) maskWriteRegister(req modbus.Frame) modbus.Frame {
	if len(req.Data) < 6 {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}
	addr := int(binary.BigEndian.Uint16(req.Data[0:2]))
	andMask := binary.BigEndian.Uint16(req.Data[2:4])
	orMask := binary.BigEndian.Uint16(req.Data[4:6])

	d.mu.Lock()
	defer d.mu.Unlock()

	if addr >= len(d.holdingRegisters) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	current := d.holdingRegisters[addr]
	d.holdingRegisters[addr] = (current & andMask) | (orMask &^ andMask)
	return reply(req, req.Data[:6])
}

func (d *Device) readWriteMultipleRegisters(req modbus.Frame) modbus.Frame {
	if len(req.Data) < 9 {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}
	readStart := int(binary.BigEndian.Uint16(req.Data[0:2]))
	readQty := int(binary.BigEndian.Uint16(req.Data[2:4]))
	writeStart := int(binary.BigEndian.Uint16(req.Data[4:6]))
	writeQty := int(binary.BigEndian.Uint16(req.Data[6:8]))
	byteCount := int(req.Data[8])
	if readQty < 1 || readQty > modbus.MaxReadRegisters ||
		writeQty < 1 || writeQty > modbus.MaxReadWriteRegisters ||
		byteCount != writeQty*2 || len(req.Data) < 9+byteCount {
		return exception(req, modbus.ExceptionIllegalDataValue)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if readStart+readQty > len(d.holdingRegisters) || writeStart+writeQty > len(d.holdingRegisters) {
		return exception(req, modbus.ExceptionIllegalDataAddress)
	}
	// The write happens before the read.
	for i := 0; i < writeQty; i++ {
		d.holdingRegisters[writeStart+i] = binary.BigEndian.Uint16(req.Data[9+i*2:])
	}
	return reply(req, registerPayload(d.holdingRegisters[readStart:readStart+readQty]))
}

// --- helpers ---

func addrQty(req modbus.Frame) (int, int, bool) {
	if len(req.Data) < 4 {
		return 0, 0, false
	}
	return int(binary.BigEndian.Uint16(req.Data[0:2])), int(binary.BigEndian.Uint16(req.Data[2:4])), true
}

func reply(req modbus.Frame, data []byte) modbus.Frame {
	return modbus.Frame{
		MBAP:         req.MBAP,
		FunctionCode: req.FunctionCode,
		Data:         append([]byte(nil), data...),
	}
}

func exception(req modbus.Frame, code modbus.ExceptionCode) modbus.Frame {
	return modbus.Frame{
		MBAP:         req.MBAP,
		FunctionCode: req.FunctionCode | 0x80,
		Data:         []byte{byte(code)},
	}
}
