/*
PURPOSE:
  Writes the aggregated backend-pair matrix to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - One row per backend pair, columns for each aggregate metric,
    suitable for spreadsheet ingestion.

  Implementation-discovered:
  - Every attempted pair appears, failures included: failures are
    visible data, not silent omissions.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Consumes: internal/report.PairAggregate

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex if concurrent writes are expected.

USAGE:
  w, err := output.NewCSVWriter("grid_matrix.csv")
  w.Write(agg)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/report/report.go

MAINTENANCE:
  - Update Write() mapping when PairAggregate changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/cruiserlab/voicegrid/internal/report"
)

// CSVWriter handles writing pair aggregates to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	header := []string{
		"llm_backend", "tts_backend",
		"attempted", "succeeded", "partial", "failed", "failure_rate",
		"mean_total_s", "p95_total_s", "mean_first_token_s", "mean_tts_s",
		"function_call_rate", "multilingual_rate",
		"peak_memory_mb", "gpu_measured",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single pair aggregate as one row.
// It is thread-safe.
func (cw *CSVWriter) Write(a report.PairAggregate) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		a.LLMBackend,
		a.TTSBackend,
		fmt.Sprintf("%d", a.Attempted),
		fmt.Sprintf("%d", a.Succeeded),
		fmt.Sprintf("%d", a.Partial),
		fmt.Sprintf("%d", a.Failed),
		fmt.Sprintf("%.3f", a.FailureRate),
		fmt.Sprintf("%.4f", a.MeanTotalLatency.Seconds()),
		fmt.Sprintf("%.4f", a.P95TotalLatency.Seconds()),
		fmt.Sprintf("%.4f", a.MeanFirstToken.Seconds()),
		fmt.Sprintf("%.4f", a.MeanTTSLatency.Seconds()),
		fmt.Sprintf("%.3f", a.FunctionCallRate),
		fmt.Sprintf("%.3f", a.MultilingualRate),
		fmt.Sprintf("%.2f", a.PeakMemoryMB),
		fmt.Sprintf("%t", a.GPUMeasured),
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// WriteAll writes the full matrix in report order.
func (cw *CSVWriter) WriteAll(rep report.Report) error {
	for _, pair := range rep.Pairs {
		if err := cw.Write(pair); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
