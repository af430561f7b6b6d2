package compose

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tturner/mbcompose/internal/modbus"
)

// ReadRequest is one composed read: the protocol request plus the named
// addresses its response will be mapped back to, in wire order.
type ReadRequest struct {
	ID        uuid.UUID
	Target    Target
	Addresses []ReadAddress
	Request   modbus.Request
}

// ReadResult is the outcome of parsing a read response. Values is nil when
// the device answered with an exception.
type ReadResult struct {
	Response modbus.Response
	Values   map[string]any
}

// Exception returns the exception response, if the device sent one.
func (r ReadResult) Exception() (*modbus.ExceptionResponse, bool) {
	exc, ok := r.Response.(*modbus.ExceptionResponse)
	return exc, ok
}

// Parse decodes a complete response frame and extracts every address.
func (r ReadRequest) Parse(frame []byte) (ReadResult, error) {
	resp, err := modbus.ParseResponse(frame)
	if err != nil {
		return ReadResult{}, err
	}
	return r.ParseResponse(resp)
}

// ParseResponse extracts every address from an already parsed response.
// Extraction failures are joined into the returned error; the values that
// did extract are still returned.
func (r ReadRequest) ParseResponse(resp modbus.Response) (ReadResult, error) {
	if err := checkFunction(r.Request, resp); err != nil {
		return ReadResult{Response: resp}, err
	}
	if _, ok := resp.(*modbus.ExceptionResponse); ok {
		return ReadResult{Response: resp}, nil
	}
	rr, ok := resp.(modbus.ReadResponse)
	if !ok {
		return ReadResult{Response: resp}, fmt.Errorf("%w: %s is not a read response", modbus.ErrProtocol, resp.Function())
	}
	rr.SetStartAddress(modbus.RequestStart(r.Request))

	values := make(map[string]any, len(r.Addresses))
	var errs []error
	for _, a := range r.Addresses {
		v, err := a.Extract(rr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[a.Name()] = v
	}
	return ReadResult{Response: resp, Values: values}, errors.Join(errs...)
}

// WriteRequest is one composed write.
type WriteRequest struct {
	ID        uuid.UUID
	Target    Target
	Addresses []Address
	Request   modbus.Request
}

// Parse decodes the acknowledgement. An exception is returned as the
// response with a nil error; an acknowledgement that does not echo the
// request's range is a protocol error.
func (r WriteRequest) Parse(frame []byte) (modbus.Response, error) {
	resp, err := modbus.ParseResponse(frame)
	if err != nil {
		return nil, err
	}
	if err := checkFunction(r.Request, resp); err != nil {
		return resp, err
	}
	var start, qty uint16
	switch ack := resp.(type) {
	case *modbus.WriteMultipleCoilsResponse:
		start, qty = ack.StartAddress(), ack.Quantity()
	case *modbus.WriteMultipleRegistersResponse:
		start, qty = ack.StartAddress(), ack.Quantity()
	default:
		return resp, nil
	}
	if start != modbus.RequestStart(r.Request) || int(qty) != modbus.RequestQuantity(r.Request) {
		return resp, fmt.Errorf("%w: %s acknowledged %d+%d, requested %d+%d", modbus.ErrProtocol,
			resp.Function(), start, qty, modbus.RequestStart(r.Request), modbus.RequestQuantity(r.Request))
	}
	return resp, nil
}

func checkFunction(req modbus.Request, resp modbus.Response) error {
	if resp.Function() != req.Function() {
		return fmt.Errorf("%w: response function %s does not match request %s", modbus.ErrProtocol, resp.Function(), req.Function())
	}
	return nil
}
