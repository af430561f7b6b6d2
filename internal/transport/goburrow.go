package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	gbmodbus "github.com/goburrow/modbus"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/modbus"
	"github.com/tturner/mbcompose/internal/modbus/codec"
)

// GoburrowClient is an Executor backed by github.com/goburrow/modbus. It
// hands each composed request to the library call for its function code
// and rebuilds the response frame from the returned data, so composed
// requests parse it exactly as they parse native responses.
type GoburrowClient struct {
	opts Options
	log  *logging.Logger

	mu       sync.Mutex // the goburrow client is not safe for concurrent use
	handlers map[string]*gbmodbus.TCPClientHandler
}

var _ Executor = (*GoburrowClient)(nil)

// NewGoburrowClient creates the goburrow-backed executor.
func NewGoburrowClient(opts Options, logger *logging.Logger) *GoburrowClient {
	if logger == nil {
		logger = logging.Discard()
	}
	return &GoburrowClient{
		opts:     opts,
		log:      logger,
		handlers: make(map[string]*gbmodbus.TCPClientHandler),
	}
}

// Read executes one composed read.
func (g *GoburrowClient) Read(ctx context.Context, req compose.ReadRequest) (compose.ReadResult, error) {
	frame, err := g.do(ctx, req.Target, req.Request)
	if err != nil {
		return compose.ReadResult{}, err
	}
	return req.Parse(frame)
}

// Write executes one composed write.
func (g *GoburrowClient) Write(ctx context.Context, req compose.WriteRequest) (modbus.Response, error) {
	frame, err := g.do(ctx, req.Target, req.Request)
	if err != nil {
		return nil, err
	}
	return req.Parse(frame)
}

// Close closes every handler.
func (g *GoburrowClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for uri, h := range g.handlers {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", uri, err))
		}
	}
	clear(g.handlers)
	return errors.Join(errs...)
}

func (g *GoburrowClient) handler(uri string) (*gbmodbus.TCPClientHandler, error) {
	if h, ok := g.handlers[uri]; ok {
		return h, nil
	}
	addr, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	h := gbmodbus.NewTCPClientHandler(addr)
	h.Timeout = g.opts.Timeout
	h.IdleTimeout = 30 * time.Second
	g.handlers[uri] = h
	return h, nil
}

func (g *GoburrowClient) do(ctx context.Context, target compose.Target, req modbus.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.handler(target.URI)
	if err != nil {
		return nil, err
	}
	h.SlaveId = target.UnitID

	start := time.Now()
	data, err := call(gbmodbus.NewClient(h), req)
	rtt := time.Since(start)

	hdr := req.Header()
	var mbErr *gbmodbus.ModbusError
	switch {
	case errors.As(err, &mbErr):
		g.log.LogExchange(target.String(), req.Function().String(), hdr.TransactionID, true, rtt, nil)
		exc := modbus.NewExceptionResponse(hdr.TransactionID, target.UnitID, req.Function(), modbus.ExceptionCode(mbErr.ExceptionCode))
		return exc.Bytes(), nil
	case err != nil:
		g.log.LogExchange(target.String(), req.Function().String(), hdr.TransactionID, false, rtt, err)
		_ = h.Close()
		return nil, fmt.Errorf("%s: %w", target.URI, err)
	}
	g.log.LogExchange(target.String(), req.Function().String(), hdr.TransactionID, true, rtt, nil)

	frame := modbus.Frame{
		MBAP:         modbus.MBAPHeader{TransactionID: hdr.TransactionID, UnitID: target.UnitID},
		FunctionCode: req.Function(),
		Data:         data,
	}
	return frame.Bytes(), nil
}

// call issues req through c and returns the PDU data a device would have
// sent after the function code.
func call(c gbmodbus.Client, req modbus.Request) ([]byte, error) {
	switch r := req.(type) {
	case *modbus.ReadCoilsRequest:
		return countPrefixed(c.ReadCoils(r.StartAddress, r.Quantity))
	case *modbus.ReadInputDiscretesRequest:
		return countPrefixed(c.ReadDiscreteInputs(r.StartAddress, r.Quantity))
	case *modbus.ReadHoldingRegistersRequest:
		return countPrefixed(c.ReadHoldingRegisters(r.StartAddress, r.Quantity))
	case *modbus.ReadInputRegistersRequest:
		return countPrefixed(c.ReadInputRegisters(r.StartAddress, r.Quantity))
	case *modbus.ReadWriteMultipleRegistersRequest:
		return countPrefixed(c.ReadWriteMultipleRegisters(r.ReadAddress, r.ReadQuantity,
			r.WriteAddress, uint16(len(r.WriteData)/2), r.WriteData))
	case *modbus.WriteSingleCoilRequest:
		var v uint16
		if r.Value {
			v = 0xFF00
		}
		return addressPrefixed(r.Address)(c.WriteSingleCoil(r.Address, v))
	case *modbus.WriteSingleRegisterRequest:
		return addressPrefixed(r.Address)(c.WriteSingleRegister(r.Address, r.Value))
	case *modbus.WriteMultipleCoilsRequest:
		return addressPrefixed(r.StartAddress)(c.WriteMultipleCoils(r.StartAddress, uint16(len(r.Coils)), codec.BoolsToBytes(r.Coils)))
	case *modbus.WriteMultipleRegistersRequest:
		return addressPrefixed(r.StartAddress)(c.WriteMultipleRegisters(r.StartAddress, r.Quantity(), r.Data))
	case *modbus.MaskWriteRegisterRequest:
		return addressPrefixed(r.Address)(c.MaskWriteRegister(r.Address, r.AndMask, r.OrMask))
	default:
		return nil, fmt.Errorf("%w: %s is not supported by the goburrow backend", modbus.ErrConfiguration, req.Function())
	}
}

// countPrefixed restores the byte count goburrow strips from read results.
func countPrefixed(results []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(len(results))}, results...), nil
}

// addressPrefixed restores the echoed address goburrow strips from write
// acknowledgements.
func addressPrefixed(addr uint16) func([]byte, error) ([]byte, error) {
	return func(results []byte, err error) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return append(binary.BigEndian.AppendUint16(nil, addr), results...), nil
	}
}
