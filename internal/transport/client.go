package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/modbus"
)

// Executor runs composed requests against devices.
type Executor interface {
	Read(ctx context.Context, req compose.ReadRequest) (compose.ReadResult, error)
	Write(ctx context.Context, req compose.WriteRequest) (modbus.Response, error)
	Close() error
}

// Recorder receives every completed request/response pair.
type Recorder interface {
	WriteExchange(request, response []byte) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransportFactory replaces the TCP dialer, e.g. with in-memory pipes.
func WithTransportFactory(f func(uri string) Transport) ClientOption {
	return func(c *Client) { c.newTransport = f }
}

// WithRecorder copies every exchange to r.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// Client is the native Executor: one connection per device URI, responses
// correlated through a pipeline tracker.
type Client struct {
	opts         Options
	log          *logging.Logger
	tracker      *modbus.PipelineTracker
	newTransport func(uri string) Transport
	recorder     Recorder

	mu    sync.Mutex
	conns map[string]*deviceConn
}

// deviceConn serializes exchanges on one connection.
type deviceConn struct {
	mu   sync.Mutex
	uri  string
	addr string
	t    Transport
}

var _ Executor = (*Client)(nil)

// NewClient creates a client. A nil logger discards.
func NewClient(opts Options, logger *logging.Logger, options ...ClientOption) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Client{
		opts:    opts,
		log:     logger,
		tracker: modbus.NewPipelineTracker(opts.MaxOutstanding, 2*opts.Timeout),
		conns:   make(map[string]*deviceConn),
	}
	c.newTransport = func(string) Transport { return NewTCPTransport(opts.ConnectTimeout) }
	for _, o := range options {
		o(c)
	}
	return c
}

// Read executes one composed read and extracts its values.
func (c *Client) Read(ctx context.Context, req compose.ReadRequest) (compose.ReadResult, error) {
	frame, err := c.exchange(ctx, req.Target, req.ID, req.Request)
	if err != nil {
		return compose.ReadResult{}, err
	}
	return req.Parse(frame)
}

// Write executes one composed write.
func (c *Client) Write(ctx context.Context, req compose.WriteRequest) (modbus.Response, error) {
	frame, err := c.exchange(ctx, req.Target, req.ID, req.Request)
	if err != nil {
		return nil, err
	}
	return req.Parse(frame)
}

// Stats returns the pipeline tracker's counters.
func (c *Client) Stats() modbus.PipelineStats {
	return c.tracker.Stats()
}

// Close disconnects every device.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for uri, dc := range c.conns {
		dc.mu.Lock()
		if err := dc.t.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", uri, err))
		}
		dc.mu.Unlock()
	}
	clear(c.conns)
	c.tracker.Reset()
	return errors.Join(errs...)
}

func (c *Client) exchange(ctx context.Context, target compose.Target, id uuid.UUID, req modbus.Request) ([]byte, error) {
	tx, fn := req.Header().TransactionID, req.Function()
	if err := c.tracker.Send(tx, fn, id); err != nil {
		return nil, err
	}

	dc, err := c.conn(target.URI)
	if err != nil {
		c.tracker.Abandon(tx)
		return nil, err
	}

	request := req.Bytes()
	c.log.LogHex("tx "+target.String(), request)
	response, err := c.roundTrip(ctx, dc, request)
	if err != nil {
		c.tracker.Abandon(tx)
		c.log.LogExchange(target.String(), fn.String(), tx, false, 0, err)
		return nil, err
	}
	c.log.LogHex("rx "+target.String(), response)

	var rtt time.Duration
	frame, err := modbus.DecodeFrame(response)
	if err == nil && frame.MBAP.TransactionID != tx {
		err = fmt.Errorf("%w: sent transaction 0x%04X, answered 0x%04X", modbus.ErrProtocol, tx, frame.MBAP.TransactionID)
	}
	if err == nil {
		_, rtt, err = c.tracker.Complete(tx, frame.FunctionCode)
	}
	if err != nil {
		// Whatever arrived does not answer this request: the stream is out of step.
		c.tracker.Abandon(tx)
		c.drop(dc)
		c.log.LogExchange(target.String(), fn.String(), tx, false, 0, err)
		return nil, err
	}
	c.log.LogExchange(target.String(), fn.String(), tx, true, rtt, nil)

	if c.recorder != nil {
		if err := c.recorder.WriteExchange(request, response); err != nil {
			c.log.Error("record exchange: %v", err)
		}
	}
	return response, nil
}

func (c *Client) conn(uri string) (*deviceConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dc, ok := c.conns[uri]; ok {
		return dc, nil
	}
	addr, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	dc := &deviceConn{uri: uri, addr: addr, t: c.newTransport(uri)}
	c.conns[uri] = dc
	return dc, nil
}

func (c *Client) drop(dc *deviceConn) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_ = dc.t.Disconnect()
}

// roundTrip sends request and waits for one frame. Connecting and sending
// are retried; once the request may have reached the device nothing is
// resent, and a failed receive drops the connection.
func (c *Client) roundTrip(ctx context.Context, dc *deviceConn, request []byte) ([]byte, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	attempts := max(1, c.opts.RetryAttempts)
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			c.log.Verbose("retrying %s (attempt %d/%d): %v", dc.uri, attempt+1, attempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}
		if !dc.t.IsConnected() {
			if err := dc.t.Connect(ctx, dc.addr); err != nil {
				lastErr = err
				continue
			}
			c.log.Verbose("connected to %s (%s)", dc.uri, dc.addr)
		}
		if err := dc.t.Send(ctx, request); err != nil {
			lastErr = err
			_ = dc.t.Disconnect()
			continue
		}
		response, err := dc.t.Receive(ctx, c.opts.Timeout)
		if err != nil {
			_ = dc.t.Disconnect()
			return nil, fmt.Errorf("%s: %w", dc.uri, err)
		}
		return response, nil
	}
	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", dc.uri, attempts, lastErr)
}

// ReadAll executes reqs, one goroutine per device URI, requests for the
// same device in order. Results line up with reqs; failures are joined.
func ReadAll(ctx context.Context, ex Executor, reqs []compose.ReadRequest) ([]compose.ReadResult, error) {
	results := make([]compose.ReadResult, len(reqs))
	errs := make([]error, len(reqs))
	runPerDevice(reqs, func(r compose.ReadRequest) string { return r.Target.URI }, func(i int) {
		results[i], errs[i] = ex.Read(ctx, reqs[i])
		if errs[i] != nil {
			errs[i] = fmt.Errorf("%s %s: %w", reqs[i].Target, reqs[i].Request.Function(), errs[i])
		}
	})
	return results, errors.Join(errs...)
}

// WriteAll is ReadAll for writes.
func WriteAll(ctx context.Context, ex Executor, reqs []compose.WriteRequest) ([]modbus.Response, error) {
	results := make([]modbus.Response, len(reqs))
	errs := make([]error, len(reqs))
	runPerDevice(reqs, func(r compose.WriteRequest) string { return r.Target.URI }, func(i int) {
		results[i], errs[i] = ex.Write(ctx, reqs[i])
		if errs[i] != nil {
			errs[i] = fmt.Errorf("%s %s: %w", reqs[i].Target, reqs[i].Request.Function(), errs[i])
		}
	})
	return results, errors.Join(errs...)
}

func runPerDevice[R any](reqs []R, uri func(R) string, run func(i int)) {
	byURI := make(map[string][]int)
	for i, r := range reqs {
		byURI[uri(r)] = append(byURI[uri(r)], i)
	}
	var wg sync.WaitGroup
	for _, idx := range byURI {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range idx {
				run(i)
			}
		}()
	}
	wg.Wait()
}
