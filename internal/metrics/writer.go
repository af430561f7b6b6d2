package metrics

// Metrics output (CSV/JSON) and summary formatting

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"operation",
	"target",
	"function",
	"transaction_id",
	"addresses",
	"success",
	"rtt_ms",
	"exception",
	"error",
}

// Writer streams metrics to CSV and/or JSON files
type Writer struct {
	mu        sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonFile  *os.File
	jsonCount int
}

// NewWriter creates a new metrics writer. Empty paths are skipped.
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		file, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
		w.csvFile = file
		w.csvWriter = csv.NewWriter(file)
		if err := w.csvWriter.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonPath != "" {
		file, err := os.Create(jsonPath)
		if err != nil {
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("create JSON file: %w", err)
		}
		w.jsonFile = file
		if _, err := io.WriteString(file, "["); err != nil {
			w.Close()
			return nil, fmt.Errorf("write JSON start: %w", err)
		}
	}

	return w, nil
}

// WriteMetric writes a single metric
func (w *Writer) WriteMetric(m Metric) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.csvWriter != nil {
		record := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			string(m.Operation),
			m.Target,
			m.Function,
			fmt.Sprintf("%d", m.TransactionID),
			fmt.Sprintf("%d", m.Addresses),
			fmt.Sprintf("%t", m.Success),
			formatRTT(m.RTTMs),
			fmt.Sprintf("%d", m.Exception),
			m.Error,
		}
		if err := w.csvWriter.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.csvWriter.Flush()
	}

	if w.jsonFile != nil {
		data, err := json.MarshalIndent(m, "  ", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		sep := ",\n  "
		if w.jsonCount == 0 {
			sep = "\n  "
		}
		if _, err := io.WriteString(w.jsonFile, sep+string(data)); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		w.jsonCount++
	}

	return nil
}

// WriteAll writes every metric the sink holds.
func (w *Writer) WriteAll(s *Sink) error {
	for _, m := range s.GetMetrics() {
		if err := w.WriteMetric(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the writer and flushes all data
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if w.csvWriter != nil {
		w.csvWriter.Flush()
		errs = append(errs, w.csvWriter.Error())
	}
	if w.csvFile != nil {
		errs = append(errs, w.csvFile.Close())
		w.csvFile = nil
	}
	if w.jsonFile != nil {
		_, err := io.WriteString(w.jsonFile, "\n]\n")
		errs = append(errs, err, w.jsonFile.Close())
		w.jsonFile = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// formatRTT formats RTT value for CSV (empty string if 0)
func formatRTT(rtt float64) string {
	if rtt == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", rtt)
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var b strings.Builder
	if summary.TotalOperations == 0 {
		return "No operations recorded\n"
	}

	fmt.Fprintf(&b, "Total Operations: %d\n", summary.TotalOperations)
	fmt.Fprintf(&b, "Successful: %d (%.1f%%)\n", summary.SuccessfulOps,
		float64(summary.SuccessfulOps)/float64(summary.TotalOperations)*100)
	fmt.Fprintf(&b, "Failed: %d (%.1f%%)\n", summary.FailedOps,
		float64(summary.FailedOps)/float64(summary.TotalOperations)*100)
	if summary.Exceptions > 0 {
		fmt.Fprintf(&b, "Exception responses: %d\n", summary.Exceptions)
	}
	if summary.TimeoutCount > 0 {
		fmt.Fprintf(&b, "Timeouts: %d\n", summary.TimeoutCount)
	}
	if summary.ConnectionFailures > 0 {
		fmt.Fprintf(&b, "Connection Failures: %d\n", summary.ConnectionFailures)
	}

	if summary.SuccessfulOps > 0 {
		b.WriteString("\nRTT Statistics (all operations):\n")
		fmt.Fprintf(&b, "  Min: %.3f ms\n", summary.MinRTT)
		fmt.Fprintf(&b, "  Max: %.3f ms\n", summary.MaxRTT)
		fmt.Fprintf(&b, "  Avg: %.3f ms\n", summary.AvgRTT)
		if summary.P50RTT > 0 {
			fmt.Fprintf(&b, "  P50: %.3f ms  P90: %.3f ms  P95: %.3f ms  P99: %.3f ms\n",
				summary.P50RTT, summary.P90RTT, summary.P95RTT, summary.P99RTT)
		}
		if len(summary.RTTBuckets) > 0 {
			fmt.Fprintf(&b, "  Buckets: <1ms=%d 1-5ms=%d 5-10ms=%d 10-50ms=%d 50-100ms=%d 100-500ms=%d >500ms=%d\n",
				summary.RTTBuckets["lt_1ms"],
				summary.RTTBuckets["1_5ms"],
				summary.RTTBuckets["5_10ms"],
				summary.RTTBuckets["10_50ms"],
				summary.RTTBuckets["50_100ms"],
				summary.RTTBuckets["100_500ms"],
				summary.RTTBuckets["gt_500ms"],
			)
		}
	}

	writeStats(&b, "Per-Function Statistics", summary.ByFunction)
	writeStats(&b, "Per-Target Statistics", summary.ByTarget)
	return b.String()
}

func writeStats(b *strings.Builder, title string, by map[string]*Stats) {
	if len(by) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	keys := make([]string, 0, len(by))
	for k := range by {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		stats := by[k]
		fmt.Fprintf(b, "  %s: %d ops (%d success, %d failed", k, stats.Count, stats.Success, stats.Failed)
		if stats.Exceptions > 0 {
			fmt.Fprintf(b, ", %d exceptions", stats.Exceptions)
		}
		b.WriteString(")")
		if stats.Success > 0 && stats.SumRTT > 0 {
			fmt.Fprintf(b, " - RTT: min=%.3fms, max=%.3fms, avg=%.3fms", stats.MinRTT, stats.MaxRTT, stats.AvgRTT)
		}
		b.WriteString("\n")
	}
}
