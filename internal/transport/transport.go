// Package transport moves composed Modbus requests over TCP: it frames
// responses off the byte stream, keeps one connection per device URI, and
// retries connection failures.
package transport

import (
	"context"
	"time"
)

// Transport is a byte-level connection to one Modbus/TCP endpoint.
type Transport interface {
	Connect(ctx context.Context, addr string) error
	Disconnect() error
	Send(ctx context.Context, data []byte) error
	// Receive returns exactly one complete ADU.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	IsConnected() bool
}

// Options configures transport behavior.
type Options struct {
	Timeout        time.Duration // Per-exchange response timeout
	ConnectTimeout time.Duration // Dial timeout
	RetryAttempts  int           // Reconnect attempts on connection failure
	RetryDelay     time.Duration // Delay between attempts
	MaxOutstanding int           // Pipeline limit per client (0 = unlimited)
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Timeout:        2 * time.Second,
		ConnectTimeout: 5 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     500 * time.Millisecond,
		MaxOutstanding: 16,
	}
}
