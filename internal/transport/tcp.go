package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/mbcompose/internal/modbus"
)

// ErrNotConnected is returned by Send and Receive before Connect.
var ErrNotConnected = errors.New("not connected")

// TCPTransport implements Transport over a stream connection.
type TCPTransport struct {
	conn        net.Conn
	addr        string
	dialTimeout time.Duration
	connMu      sync.RWMutex
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a new TCP transport
func NewTCPTransport(dialTimeout time.Duration) *TCPTransport {
	return &TCPTransport{dialTimeout: dialTimeout}
}

// NewConnTransport wraps an already established connection.
func NewConnTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, addr: conn.RemoteAddr().String()}
}

// Connect establishes a TCP connection
func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn != nil {
		return fmt.Errorf("already connected")
	}

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial TCP: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			conn.Close()
			return fmt.Errorf("set keep-alive: %w", err)
		}
	}

	t.conn = conn
	t.addr = addr
	return nil
}

// Disconnect closes the TCP connection
func (t *TCPTransport) Disconnect() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.addr = ""

	return err
}

// Send writes one request frame.
func (t *TCPTransport) Send(ctx context.Context, data []byte) error {
	t.connMu.RLock()
	defer t.connMu.RUnlock()

	if t.conn == nil {
		return ErrNotConnected
	}

	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	_, err := t.conn.Write(data)
	return err
}

// Receive reads exactly one response frame, sized by its MBAP length
// field. A frame that declares more than a legal ADU is a framing error;
// the caller should drop the connection since the stream is out of sync.
func (t *TCPTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()

	if t.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, 0, modbus.MaxADUSize)
	for {
		complete, err := modbus.IsCompleteLength(buf)
		if err != nil {
			return nil, err
		}
		if complete {
			return buf, nil
		}
		need := 6 - len(buf)
		if len(buf) >= 6 {
			need = 6 + int(binary.BigEndian.Uint16(buf[4:6])) - len(buf)
		}
		n, err := io.ReadFull(t.conn, buf[len(buf):len(buf)+need])
		buf = buf[:len(buf)+n]
		if err != nil {
			if len(buf) == 0 {
				return nil, fmt.Errorf("read header: %w", err)
			}
			return nil, fmt.Errorf("read frame (%d bytes so far): %w", len(buf), err)
		}
	}
}

// IsConnected returns whether the transport is connected
func (t *TCPTransport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.conn != nil
}
