package modbus

// Pipeline tracker for Modbus TCP transaction pipelining.
//
// Modbus TCP allows multiple outstanding requests keyed by TransactionID.
// PipelineTracker correlates responses with the composed requests that
// produced them and enforces limits.

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PipelineTracker manages outstanding Modbus TCP transactions.
type PipelineTracker struct {
	mu             sync.Mutex
	pending        map[uint16]*PendingRequest
	maxOutstanding int
	timeout        time.Duration

	// Metrics
	totalSent      int64
	totalCompleted int64
	totalTimedOut  int64
	totalLatencyUs int64 // cumulative microseconds for completed requests
}

// PendingRequest represents an in-flight Modbus request.
type PendingRequest struct {
	TransactionID uint16
	Function      FunctionCode
	RequestID     uuid.UUID // composed request that owns the transaction
	SentAt        time.Time
}

// PipelineStats contains pipeline performance metrics.
type PipelineStats struct {
	Outstanding    int
	MaxOutstanding int
	TotalSent      int64
	TotalCompleted int64
	TotalTimedOut  int64
	AvgLatencyUs   float64
}

// NewPipelineTracker creates a tracker with the given limits.
// maxOutstanding is the maximum number of concurrent pending requests (0 = unlimited).
// timeout is the expiry duration for stale transactions (0 = no timeout).
func NewPipelineTracker(maxOutstanding int, timeout time.Duration) *PipelineTracker {
	return &PipelineTracker{
		pending:        make(map[uint16]*PendingRequest),
		maxOutstanding: maxOutstanding,
		timeout:        timeout,
	}
}

// Send registers an outgoing request. It fails when the pipeline is full or
// the transaction id is already in flight.
func (pt *PipelineTracker) Send(txID uint16, fc FunctionCode, requestID uuid.UUID) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.cleanupLocked()

	if pt.maxOutstanding > 0 && len(pt.pending) >= pt.maxOutstanding {
		return fmt.Errorf("pipeline full: %d/%d outstanding", len(pt.pending), pt.maxOutstanding)
	}
	if prev, ok := pt.pending[txID]; ok {
		return fmt.Errorf("transaction ID 0x%04X already in flight for request %s", txID, prev.RequestID)
	}

	pt.pending[txID] = &PendingRequest{
		TransactionID: txID,
		Function:      fc,
		RequestID:     requestID,
		SentAt:        time.Now(),
	}
	pt.totalSent++
	return nil
}

// Complete matches a response header to its pending request and returns the
// request plus the round-trip time. fc is the response function code; an
// exception response matches when its cleared code equals the request's.
// A known transaction answered with a different function is a protocol
// error and stays pending.
func (pt *PipelineTracker) Complete(txID uint16, fc FunctionCode) (*PendingRequest, time.Duration, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	req, ok := pt.pending[txID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown transaction ID: 0x%04X", ErrProtocol, txID)
	}
	if fc.Clear() != req.Function {
		return nil, 0, fmt.Errorf("%w: transaction 0x%04X sent %s, answered with %s", ErrProtocol, txID, req.Function, fc)
	}
	delete(pt.pending, txID)

	rtt := time.Since(req.SentAt)
	pt.totalCompleted++
	pt.totalLatencyUs += rtt.Microseconds()
	return req, rtt, nil
}

// Abandon drops a pending transaction without counting it as completed.
// Used when the connection carrying it is torn down.
func (pt *PipelineTracker) Abandon(txID uint16) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.pending, txID)
}

// Outstanding returns the number of currently pending transactions.
func (pt *PipelineTracker) Outstanding() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return len(pt.pending)
}

// Stats returns a snapshot of pipeline performance metrics.
func (pt *PipelineTracker) Stats() PipelineStats {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	var avgUs float64
	if pt.totalCompleted > 0 {
		avgUs = float64(pt.totalLatencyUs) / float64(pt.totalCompleted)
	}
	return PipelineStats{
		Outstanding:    len(pt.pending),
		MaxOutstanding: pt.maxOutstanding,
		TotalSent:      pt.totalSent,
		TotalCompleted: pt.totalCompleted,
		TotalTimedOut:  pt.totalTimedOut,
		AvgLatencyUs:   avgUs,
	}
}

// Cleanup removes timed-out transactions. Safe to call periodically.
func (pt *PipelineTracker) Cleanup() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.cleanupLocked()
}

func (pt *PipelineTracker) cleanupLocked() int {
	if pt.timeout <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-pt.timeout)
	removed := 0
	for txID, req := range pt.pending {
		if req.SentAt.Before(cutoff) {
			delete(pt.pending, txID)
			pt.totalTimedOut++
			removed++
		}
	}
	return removed
}

// Reset clears all pending transactions and resets metrics.
func (pt *PipelineTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.pending = make(map[uint16]*PendingRequest)
	pt.totalSent = 0
	pt.totalCompleted = 0
	pt.totalTimedOut = 0
	pt.totalLatencyUs = 0
}
