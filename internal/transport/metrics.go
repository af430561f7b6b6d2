package transport

import (
	"context"
	"time"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/metrics"
	"github.com/tturner/mbcompose/internal/modbus"
)

// Instrumented records one metric per request executed through an
// Executor. The RTT covers the whole call, connecting and retries included.
type Instrumented struct {
	Executor
	sink *metrics.Sink
}

// Instrument wraps ex so every Read and Write is recorded in sink.
func Instrument(ex Executor, sink *metrics.Sink) *Instrumented {
	return &Instrumented{Executor: ex, sink: sink}
}

// Read executes req and records the outcome.
func (i *Instrumented) Read(ctx context.Context, req compose.ReadRequest) (compose.ReadResult, error) {
	start := time.Now()
	res, err := i.Executor.Read(ctx, req)
	i.record(metrics.OperationRead, req.Target, req.Request, len(req.Addresses), start, res.Response, err)
	return res, err
}

// Write executes req and records the outcome.
func (i *Instrumented) Write(ctx context.Context, req compose.WriteRequest) (modbus.Response, error) {
	start := time.Now()
	resp, err := i.Executor.Write(ctx, req)
	i.record(metrics.OperationWrite, req.Target, req.Request, len(req.Addresses), start, resp, err)
	return resp, err
}

func (i *Instrumented) record(op metrics.OperationType, target compose.Target, req modbus.Request, addresses int,
	start time.Time, resp modbus.Response, err error) {
	m := metrics.Metric{
		Timestamp:     start,
		Operation:     op,
		Target:        target.String(),
		Function:      req.Function().String(),
		TransactionID: req.Header().TransactionID,
		Addresses:     addresses,
		Success:       err == nil,
	}
	if err != nil {
		m.Error = err.Error()
	} else {
		m.RTTMs = float64(time.Since(start).Microseconds()) / 1000
	}
	if exc, ok := resp.(*modbus.ExceptionResponse); ok {
		m.Exception = uint8(exc.Code)
	}
	i.sink.Record(m)
}
