/*
PURPOSE:
  Grid orchestrator: enumerates LLM backends × TTS backends × enabled
  scenarios, schedules runs with bounded concurrency, and accumulates
  the frozen RunResult set.

REQUIREMENTS:
  User-specified:
  - Bounded concurrency (default: host slot count); most backends serve
    one request at a time on constrained hardware, so unbounded
    parallelism would attribute queueing delay to backend compute.
  - One combination's failure never aborts the grid.
  - External interrupt: in-flight and not-yet-started runs are recorded
    as failed:aborted; completed results are preserved.

  Implementation-discovered:
  - The cross product is enumerated lazily via a cursor so large catalogs
    do not force upfront allocation.
  - Exactly one RunResult per combination, even under interrupt, keeps
    the result count equal to the product size.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/catalog, internal/runner, internal/adapter,
    internal/sampler, internal/config

ERROR HANDLING:
  - Execute only errors on setup problems; per-run failures are data in
    the result set.

IMPLEMENTATION RULES:
  - Result accumulator is append-only under a mutex; workers own exactly
    one RunResult at a time. No other cross-run shared mutable state.

USAGE:
  o := grid.New(cfg, cat, client)
  results, err := o.Execute(ctx)

SELF-HEALING INSTRUCTIONS:
  - If scheduling needs weights per backend, extend the semaphore cost.

RELATED FILES:
  - internal/runner/runner.go
  - internal/report/report.go

MAINTENANCE:
  - Update if parallelism policy changes.
*/

package grid

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cruiserlab/voicegrid/internal/adapter"
	"github.com/cruiserlab/voicegrid/internal/catalog"
	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/output"
	"github.com/cruiserlab/voicegrid/internal/runner"
	"github.com/cruiserlab/voicegrid/internal/sampler"
)

// Combination is one cell of the grid.
type Combination struct {
	LLM      model.BackendSpec
	TTS      model.BackendSpec
	Scenario model.Scenario
}

// cursor walks the cross product lazily in catalog insertion order.
type cursor struct {
	llms      []model.BackendSpec
	tts       []model.BackendSpec
	scenarios []model.Scenario
	i, j, k   int
}

func (c *cursor) next() (Combination, bool) {
	if c.i >= len(c.llms) || len(c.tts) == 0 || len(c.scenarios) == 0 {
		return Combination{}, false
	}
	combo := Combination{
		LLM:      c.llms[c.i],
		TTS:      c.tts[c.j],
		Scenario: c.scenarios[c.k],
	}
	c.k++
	if c.k >= len(c.scenarios) {
		c.k = 0
		c.j++
		if c.j >= len(c.tts) {
			c.j = 0
			c.i++
		}
	}
	return combo, true
}

// AdapterFactory builds the capability wrapper for one backend spec.
type AdapterFactory func(spec model.BackendSpec) (adapter.Adapter, error)

// Orchestrator schedules the full grid.
type Orchestrator struct {
	cfg *config.Config
	cat *catalog.Catalog

	// NewAdapter and Probe are injection points for tests.
	NewAdapter AdapterFactory
	Probe      sampler.Probe
}

// New wires an orchestrator to the shared HTTP client pool. The client is
// acquired once at harness start and released after the grid completes.
func New(cfg *config.Config, cat *catalog.Catalog, client *http.Client) *Orchestrator {
	return &Orchestrator{
		cfg: cfg,
		cat: cat,
		NewAdapter: func(spec model.BackendSpec) (adapter.Adapter, error) {
			return adapter.New(spec, client)
		},
		Probe: sampler.Detect(),
	}
}

// Total is the number of combinations the grid will attempt.
func (o *Orchestrator) Total() int {
	return len(o.cat.LLMBackends()) * len(o.cat.TTSBackends()) * len(o.cat.EnabledScenarios())
}

// Execute runs every combination and returns the frozen result set.
// The result count always equals Total(), interrupt or not.
func (o *Orchestrator) Execute(ctx context.Context) ([]model.RunResult, error) {
	gridID := uuid.NewString()
	limit := o.cfg.EffectiveConcurrency()

	output.Logger.Info("Starting grid",
		"grid_id", gridID,
		"llm_backends", len(o.cat.LLMBackends()),
		"tts_backends", len(o.cat.TTSBackends()),
		"scenarios", len(o.cat.EnabledScenarios()),
		"combinations", o.Total(),
		"concurrency", limit,
	)

	var (
		mu      sync.Mutex
		results = make([]model.RunResult, 0, o.Total())
		wg      sync.WaitGroup
	)
	record := func(res model.RunResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}

	sem := semaphore.NewWeighted(int64(limit))
	cur := &cursor{
		llms:      o.cat.LLMBackends(),
		tts:       o.cat.TTSBackends(),
		scenarios: o.cat.EnabledScenarios(),
	}

	for {
		combo, ok := cur.next()
		if !ok {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Interrupted: everything not yet started is aborted, with a
			// result each so the matrix stays complete.
			record(abortedResult(gridID, combo))
			for {
				rest, more := cur.next()
				if !more {
					break
				}
				record(abortedResult(gridID, rest))
			}
			break
		}

		wg.Add(1)
		go func(c Combination) {
			defer wg.Done()
			defer sem.Release(1)
			record(o.runOne(ctx, gridID, c))
		}(combo)
	}

	wg.Wait()

	output.Logger.Info("Grid complete", "grid_id", gridID, "results", len(results))
	return results, nil
}

// runOne executes a single combination with full failure isolation.
func (o *Orchestrator) runOne(ctx context.Context, gridID string, c Combination) model.RunResult {
	llm, err := o.NewAdapter(c.LLM)
	if err == nil {
		var tts adapter.Adapter
		tts, err = o.NewAdapter(c.TTS)
		if err == nil {
			r := runner.New(llm, tts, o.Probe, runner.Options{
				GridID:         gridID,
				Timeout:        o.cfg.RunTimeout(),
				RetryCount:     o.cfg.RetryCount,
				RetryDelay:     o.cfg.RetryDelay,
				SampleInterval: o.cfg.SampleInterval(),
			})
			res := r.Run(ctx, c.Scenario)
			if res.Status == model.StatusFailed {
				output.Logger.Warn("Run failed",
					"llm", c.LLM.ID, "tts", c.TTS.ID, "scenario", c.Scenario.ID,
					"reason", res.Reason, "error", res.Error)
			} else {
				output.Logger.Info("Run finished",
					"llm", c.LLM.ID, "tts", c.TTS.ID, "scenario", c.Scenario.ID,
					"status", res.Status, "total", res.TotalLatency)
			}
			return res
		}
	}

	// Adapter construction failed; record, do not abort the grid.
	res := baseResult(gridID, c)
	res.Status = model.StatusFailed
	res.Reason = model.ReasonBackendError
	res.Error = err.Error()
	return res
}

func baseResult(gridID string, c Combination) model.RunResult {
	return model.RunResult{
		GridID:     gridID,
		LLMBackend: c.LLM.ID,
		TTSBackend: c.TTS.ID,
		ScenarioID: c.Scenario.ID,
		Category:   c.Scenario.Category,
		Timestamp:  time.Now(),
	}
}

func abortedResult(gridID string, c Combination) model.RunResult {
	res := baseResult(gridID, c)
	res.Status = model.StatusFailed
	res.Reason = model.ReasonAborted
	res.Error = "grid interrupted before run started"
	return res
}
