package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/report"
)

func TestJSONWriterRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")

	w, err := NewJSONWriter(path)
	require.NoError(t, err)

	want := []model.RunResult{
		{
			GridID:       "g1",
			LLMBackend:   "qwen-7b",
			TTSBackend:   "edge-tts",
			ScenarioID:   "intro",
			Category:     model.CategoryBasicLatency,
			Status:       model.StatusSuccess,
			Attempts:     1,
			TotalLatency: 1200 * time.Millisecond,
			TTSInvoked:   true,
			AudioBytes:   2048,
		},
		{
			GridID:     "g1",
			LLMBackend: "qwen-7b",
			TTSBackend: "piper",
			ScenarioID: "intro",
			Status:     model.StatusFailed,
			Reason:     model.ReasonUnavailable,
			Attempts:   2,
			Error:      "connection refused",
		},
	}
	for _, r := range want {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())

	got, err := ReadResults(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0].TotalLatency, got[0].TotalLatency)
	assert.Equal(t, want[1].Reason, got[1].Reason)
	assert.Equal(t, want[1].Attempts, got[1].Attempts)
}

func TestReadResultsSkipsTruncatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	body := `{"grid_id":"g1","llm_backend":"a","tts_backend":"x","scenario_id":"intro","status":"success"}
{"grid_id":"g1","llm_backend":"a","tts_ba`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := ReadResults(path)
	require.NoError(t, err)
	require.Len(t, got, 1, "truncated trailing line is skipped, not fatal")
	assert.Equal(t, "a+x", got[0].PairID())
}

func TestReadResultsMissingFile(t *testing.T) {
	_, err := ReadResults(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}

func TestCSVWriterMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	rep := report.Report{Pairs: []report.PairAggregate{
		{
			PairID: "a+x", LLMBackend: "a", TTSBackend: "x",
			Attempted: 4, Succeeded: 3, Partial: 1,
			MeanTotalLatency: 1500 * time.Millisecond,
			P95TotalLatency:  2 * time.Second,
			FunctionCallRate: 0.5,
			PeakMemoryMB:     3102.25,
			GPUMeasured:      true,
		},
		{
			PairID: "b+x", LLMBackend: "b", TTSBackend: "x",
			Attempted: 4, Failed: 4, FailureRate: 1,
		},
	}}
	require.NoError(t, w.WriteAll(rep))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per pair")

	assert.Equal(t, "llm_backend", rows[0][0])
	assert.Equal(t, []string{
		"a", "x", "4", "3", "1", "0", "0.000",
		"1.5000", "2.0000", "0.0000", "0.0000",
		"0.500", "0.000", "3102.25", "true",
	}, rows[1])

	// Failed pairs still get a row.
	assert.Equal(t, "b", rows[2][0])
	assert.Equal(t, "1.000", rows[2][6])
}
