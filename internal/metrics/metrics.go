package metrics

// Metrics collection for Modbus exchanges

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// OperationType represents the type of operation
type OperationType string

const (
	OperationRead  OperationType = "READ"
	OperationWrite OperationType = "WRITE"
)

// Metric represents one executed request
type Metric struct {
	Timestamp     time.Time
	Operation     OperationType
	Target        string
	Function      string
	TransactionID uint16
	Addresses     int
	Success       bool
	RTTMs         float64
	Exception     uint8 // exception code, 0 when the device answered normally
	Error         string
}

// Sink collects and aggregates metrics
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
}

func newSummary() *Summary {
	return &Summary{
		RTTBuckets: make(map[string]int),
		ByFunction: make(map[string]*Stats),
		ByTarget:   make(map[string]*Stats),
	}
}

// Summary contains aggregated statistics
type Summary struct {
	TotalOperations    int
	SuccessfulOps      int
	FailedOps          int
	Exceptions         int
	TimeoutCount       int
	ConnectionFailures int
	MinRTT             float64
	MaxRTT             float64
	AvgRTT             float64
	P50RTT             float64
	P90RTT             float64
	P95RTT             float64
	P99RTT             float64
	RTTBuckets         map[string]int
	ByFunction         map[string]*Stats
	ByTarget           map[string]*Stats
}

// Stats contains statistics for one function code or one target
type Stats struct {
	Count      int
	Success    int
	Failed     int
	Exceptions int
	MinRTT     float64
	MaxRTT     float64
	AvgRTT     float64
	SumRTT     float64
}

// NewSink creates a new metrics sink
func NewSink() *Sink {
	return &Sink{
		metrics: make([]Metric, 0),
		summary: newSummary(),
	}
}

// Record records a new metric
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
}

// GetMetrics returns a copy of all recorded metrics
func (s *Sink) GetMetrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// GetSummary returns a copy of the aggregated summary
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := *s.summary
	summary.RTTBuckets = make(map[string]int)
	summary.ByFunction = copyStats(s.summary.ByFunction)
	summary.ByTarget = copyStats(s.summary.ByTarget)

	rtts := make([]float64, 0, len(s.metrics))
	for _, m := range s.metrics {
		if m.Success && m.RTTMs > 0 {
			rtts = append(rtts, m.RTTMs)
			incrementBucket(summary.RTTBuckets, m.RTTMs)
		}
	}
	p := computePercentiles(rtts)
	summary.P50RTT, summary.P90RTT, summary.P95RTT, summary.P99RTT = p[0], p[1], p[2], p[3]
	return &summary
}

func copyStats(in map[string]*Stats) map[string]*Stats {
	out := make(map[string]*Stats, len(in))
	for k, v := range in {
		c := *v
		out[k] = &c
	}
	return out
}

// updateSummary updates the summary statistics with a new metric
func (s *Sink) updateSummary(m Metric) {
	s.summary.TotalOperations++

	if m.Success {
		s.summary.SuccessfulOps++
		if m.Exception != 0 {
			s.summary.Exceptions++
		}
	} else {
		s.summary.FailedOps++
		if strings.Contains(m.Error, "timeout") || strings.Contains(m.Error, "deadline exceeded") {
			s.summary.TimeoutCount++
		}
		if strings.Contains(m.Error, "connection") || strings.Contains(m.Error, "dial") {
			s.summary.ConnectionFailures++
		}
	}

	// Update RTT statistics
	if m.Success && m.RTTMs > 0 {
		if s.summary.MinRTT == 0 || m.RTTMs < s.summary.MinRTT {
			s.summary.MinRTT = m.RTTMs
		}
		if m.RTTMs > s.summary.MaxRTT {
			s.summary.MaxRTT = m.RTTMs
		}
		totalRTT := s.summary.AvgRTT * float64(s.summary.SuccessfulOps-1)
		totalRTT += m.RTTMs
		s.summary.AvgRTT = totalRTT / float64(s.summary.SuccessfulOps)
	}

	updateStats(s.summary.ByFunction, m.Function, m)
	updateStats(s.summary.ByTarget, m.Target, m)
}

func updateStats(by map[string]*Stats, key string, m Metric) {
	stats, exists := by[key]
	if !exists {
		stats = &Stats{}
		by[key] = stats
	}
	stats.Count++
	if !m.Success {
		stats.Failed++
		return
	}
	stats.Success++
	if m.Exception != 0 {
		stats.Exceptions++
	}
	if m.RTTMs > 0 {
		if stats.MinRTT == 0 || m.RTTMs < stats.MinRTT {
			stats.MinRTT = m.RTTMs
		}
		if m.RTTMs > stats.MaxRTT {
			stats.MaxRTT = m.RTTMs
		}
		stats.SumRTT += m.RTTMs
		stats.AvgRTT = stats.SumRTT / float64(stats.Success)
	}
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 5:
		buckets["1_5ms"]++
	case value < 10:
		buckets["5_10ms"]++
	case value < 50:
		buckets["10_50ms"]++
	case value < 100:
		buckets["50_100ms"]++
	case value < 500:
		buckets["100_500ms"]++
	default:
		buckets["gt_500ms"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
