/*
PURPOSE:
  Defines the core data structures used throughout Voicegrid.
  These models represent backends, scenarios, and per-run results.

REQUIREMENTS:
  User-specified:
  - Record latency breakdown (first token, LLM total, TTS synthesis).
  - Track the (LLM backend, TTS backend, scenario) triple each result
    belongs to, plus resource usage during the run.

  Implementation-discovered:
  - Need JSON tags for the JSONL result log (re-ingested by `report`).
  - Need YAML tags so backend/scenario definitions load straight from config.

ARCHITECTURE INTEGRATION:
  - Used by: internal/catalog, internal/runner, internal/grid,
    internal/report, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.
  - RunResult is immutable after the runner hands it off.

USAGE:
  res := model.RunResult{...}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add field and update CSV/JSON writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"time"
)

// Kind identifies which side of the grid a backend sits on.
type Kind string

const (
	KindLLM Kind = "llm"
	KindTTS Kind = "tts"
)

// BackendSpec describes one inference endpoint. Immutable once loaded;
// the catalog owns it for the duration of a grid execution.
type BackendSpec struct {
	ID      string                 `yaml:"id" json:"id"`
	Kind    Kind                   `yaml:"kind" json:"kind"`
	URL     string                 `yaml:"url" json:"url"`
	Model   string                 `yaml:"model" json:"model,omitempty"`
	Options map[string]interface{} `yaml:"options" json:"options,omitempty"`
}

// Category groups scenarios by what they exercise.
type Category string

const (
	CategoryBasicLatency    Category = "basic-latency"
	CategoryFunctionCalling Category = "function-calling"
	CategoryDialogue        Category = "dialogue"
	CategoryMultilingual    Category = "multilingual"
)

// Scenario is one fixed test input, shared read-only across all runs.
type Scenario struct {
	ID       string   `yaml:"id" json:"id"`
	Category Category `yaml:"category" json:"category"`
	Prompt   string   `yaml:"prompt" json:"prompt"`

	// WantsAudio routes the LLM output through the TTS backend.
	WantsAudio bool `yaml:"wants_audio" json:"wants_audio"`

	// ExpectedFunction names the function a function-calling scenario
	// should trigger. Informational; detection uses Trigger or Keywords.
	ExpectedFunction string `yaml:"expected_function" json:"expected_function,omitempty"`

	// Trigger, when set, is an exact marker that must appear in the LLM
	// output. It short-circuits the keyword heuristic.
	Trigger string `yaml:"trigger" json:"trigger,omitempty"`

	// Keywords feed the scored detection heuristic for function-calling
	// scenarios without an explicit Trigger.
	Keywords []string `yaml:"keywords" json:"keywords,omitempty"`
}

// ExpectsTrigger reports whether the scenario asserts function-calling
// behavior on the LLM output.
func (s Scenario) ExpectsTrigger() bool {
	return s.Category == CategoryFunctionCalling &&
		(s.Trigger != "" || len(s.Keywords) > 0)
}

// Status classifies the outcome of one run.
type Status string

const (
	// StatusSuccess: both backends responded and expectations held.
	StatusSuccess Status = "success"
	// StatusPartial: backends responded but expected behavior was absent
	// (e.g. function-call trigger missing). Feeds latency statistics.
	StatusPartial Status = "partial"
	// StatusFailed: a backend did not respond usably. Excluded from
	// latency aggregates, counted in failure rate.
	StatusFailed Status = "failed"
)

// FailureReason refines StatusFailed.
type FailureReason string

const (
	ReasonUnavailable  FailureReason = "unavailable"
	ReasonBackendError FailureReason = "backend_error"
	ReasonTimeout      FailureReason = "timeout"
	ReasonAborted      FailureReason = "aborted"
)

// ResourceSummary is the reduction of all samples taken during one run.
type ResourceSummary struct {
	// GPUMeasured is false when no GPU counter facility was available
	// and the summary degraded to host memory only.
	GPUMeasured bool `json:"gpu_measured"`

	PeakMemoryMB       float64 `json:"peak_memory_mb"`
	MeanMemoryMB       float64 `json:"mean_memory_mb"`
	TotalMemoryMB      float64 `json:"total_memory_mb,omitempty"`
	PeakUtilizationPct float64 `json:"peak_utilization_pct"`
	MeanUtilizationPct float64 `json:"mean_utilization_pct"`
	Samples            int     `json:"samples"`
}

// ResourceSample is one point-in-time reading. Ephemeral; summarized into
// ResourceSummary and discarded.
type ResourceSample struct {
	At             time.Time
	MemoryUsedMB   float64
	MemoryTotalMB  float64
	UtilizationPct float64
}

// RunResult is the outcome of executing one scenario against one
// (LLM backend, TTS backend) pair. Created once per execution, never
// mutated after completion.
type RunResult struct {
	GridID     string   `json:"grid_id"`
	LLMBackend string   `json:"llm_backend"`
	TTSBackend string   `json:"tts_backend"`
	ScenarioID string   `json:"scenario_id"`
	Category   Category `json:"category"`

	Status Status        `json:"status"`
	Reason FailureReason `json:"reason,omitempty"`

	// Attempts counts adapter invocations of the LLM backend, including
	// retries after transient connectivity failures.
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`

	FirstToken   time.Duration `json:"first_token_ns"`
	LLMLatency   time.Duration `json:"llm_latency_ns"`
	TTSLatency   time.Duration `json:"tts_latency_ns"`
	TotalLatency time.Duration `json:"total_latency_ns"`

	// TTSInvoked is false for scenarios without audio expectation; the
	// TTSLatency field is meaningless in that case.
	TTSInvoked bool `json:"tts_invoked"`

	// Output artifact sizes, not content.
	OutputChars int `json:"output_chars"`
	AudioBytes  int `json:"audio_bytes"`

	Resources ResourceSummary `json:"resources"`
	Error     string          `json:"error,omitempty"`
}

// PairID is the stable identifier of the backend combination, used as the
// deterministic final tie-break in rankings.
func (r RunResult) PairID() string {
	return r.LLMBackend + "+" + r.TTSBackend
}

// Responsive reports whether the run produced usable output (success or
// partial) and therefore feeds latency statistics.
func (r RunResult) Responsive() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}
