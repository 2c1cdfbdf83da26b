/*
PURPOSE:
  Writes raw run results to a JSON Lines file (NDJSON), and reads them
  back for offline report regeneration.

REQUIREMENTS:
  User-specified:
  - Raw per-run results must survive a crash mid-grid; the report
    subcommand rebuilds rankings from them without re-running.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array
    (append-friendly).

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli, internal/grid
  - Consumes: internal/model.RunResult

ERROR HANDLING:
  - Returns error on file creation or write failure.
  - ReadResults tolerates a truncated trailing line (crash artifact).

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("grid_results.jsonl")
  w.Write(res)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go
  - internal/cli/report.go

MAINTENANCE:
  - Update if we switch to plain JSON array (not recommended for streaming).
*/

package output

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/cruiserlab/voicegrid/internal/model"
)

// JSONWriter handles writing results to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single result as a JSON line.
func (jw *JSONWriter) Write(r model.RunResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(r)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}

// ReadResults loads a JSONL result log back into memory. A malformed
// trailing line (interrupted write) is skipped with a warning rather
// than discarding the whole log.
func ReadResults(path string) ([]model.RunResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var results []model.RunResult
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var res model.RunResult
		if err := json.Unmarshal(line, &res); err != nil {
			Logger.Warn("Skipping malformed result line", "path", path, "error", err)
			continue
		}
		results = append(results, res)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
