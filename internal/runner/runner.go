/*
PURPOSE:
  Executes one (LLM backend, TTS backend, scenario) triple: sampler up,
  LLM call, optional TTS call fed by the LLM output, sampler down,
  RunResult out.

REQUIREMENTS:
  User-specified:
  - Single bounded retry (default 1) only for transient connectivity;
    backend errors are final and recorded.
  - Per-run wall-clock timeout (default 30s) -> failed:timeout; never
    affects sibling runs.
  - Function-calling scenarios assert the trigger; a mismatch is
    `partial`, distinct from `failed`.

  Implementation-discovered:
  - Timeout vs external interrupt must be distinguished after the fact:
    the run context's deadline means timeout, a cancelled parent means
    aborted.
  - The sampler must be stopped on every path or its goroutine leaks.

ARCHITECTURE INTEGRATION:
  - Called by: internal/grid
  - Uses: internal/adapter, internal/sampler, internal/model

ERROR HANDLING:
  - Every failure is captured into the RunResult; Run never returns an
    error. Nothing propagates to abort sibling work.

IMPLEMENTATION RULES:
  - LLM then TTS strictly sequential: TTS input depends on LLM output.
  - Adapters never retry; all retry policy lives here.

USAGE:
  r := runner.New(llm, tts, probe, opts)
  res := r.Run(ctx, scenario)

SELF-HEALING INSTRUCTIONS:
  - If a new failure reason is added, extend classify().

RELATED FILES:
  - internal/adapter/adapter.go
  - internal/sampler/sampler.go

MAINTENANCE:
  - Update when the run pipeline grows stages (e.g. STT loopback).
*/

package runner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cruiserlab/voicegrid/internal/adapter"
	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/sampler"
)

// structuredPatterns are the generic markers scored by the trigger
// heuristic alongside scenario-specific keywords.
var structuredPatterns = []string{"function", "call", "api", "tool", "action"}

// Options tunes one runner. Zero values fall back to spec defaults.
type Options struct {
	GridID         string
	Timeout        time.Duration
	RetryCount     int
	RetryDelay     time.Duration
	SampleInterval time.Duration
}

// Runner executes scenarios against one fixed backend pair.
type Runner struct {
	llm   adapter.Adapter
	tts   adapter.Adapter
	probe sampler.Probe
	opts  Options
}

// New creates a runner bound to one (LLM, TTS) combination.
func New(llm, tts adapter.Adapter, probe sampler.Probe, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	return &Runner{llm: llm, tts: tts, probe: probe, opts: opts}
}

// Run executes one scenario and assembles the RunResult. It never returns
// an error: all failures are data.
func (r *Runner) Run(ctx context.Context, sc model.Scenario) model.RunResult {
	res := model.RunResult{
		GridID:     r.opts.GridID,
		LLMBackend: r.llm.Spec().ID,
		TTSBackend: r.tts.Spec().ID,
		ScenarioID: sc.ID,
		Category:   sc.Category,
		Status:     model.StatusSuccess,
		Timestamp:  time.Now(),
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	smp := sampler.Start(runCtx, r.probe, r.opts.SampleInterval)

	llmInv, attempts, err := r.invokeWithRetry(runCtx, r.llm, sc.Prompt)
	res.Attempts = attempts
	if err != nil {
		r.fail(&res, ctx, runCtx, err)
		res.Resources = smp.Stop()
		return res
	}

	res.FirstToken = llmInv.TimeToFirst()
	res.LLMLatency = llmInv.Total()
	res.TotalLatency = llmInv.Total()
	res.OutputChars = len(llmInv.Text)

	if sc.ExpectsTrigger() && !triggerDetected(sc, llmInv.Text) {
		// Backend responded but did not exhibit the expected behavior.
		res.Status = model.StatusPartial
	}

	if sc.WantsAudio {
		ttsInv, _, terr := r.invokeWithRetry(runCtx, r.tts, llmInv.Text)
		if terr != nil {
			r.fail(&res, ctx, runCtx, terr)
			res.Resources = smp.Stop()
			return res
		}
		res.TTSInvoked = true
		res.TTSLatency = ttsInv.Total()
		res.TotalLatency += ttsInv.Total()
		res.AudioBytes = len(ttsInv.Audio)
	}

	res.Resources = smp.Stop()
	return res
}

// invokeWithRetry applies the bounded retry policy: only transient
// connectivity failures are retried, and only while the run is alive.
func (r *Runner) invokeWithRetry(ctx context.Context, a adapter.Adapter, input string) (adapter.Invocation, int, error) {
	var lastErr error
	attempts := 0

	for attempts <= r.opts.RetryCount {
		if attempts > 0 {
			if !sleepCtx(ctx, r.opts.RetryDelay) {
				break
			}
		}
		attempts++

		inv, err := a.Invoke(ctx, input)
		if err == nil {
			return inv, attempts, nil
		}
		lastErr = err

		if !errors.Is(err, adapter.ErrBackendUnavailable) {
			// BackendError is final: the endpoint answered, badly.
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return adapter.Invocation{}, attempts, lastErr
}

// fail stamps the result with the failure classification.
func (r *Runner) fail(res *model.RunResult, parent, runCtx context.Context, err error) {
	res.Status = model.StatusFailed
	res.Error = err.Error()

	switch {
	case parent.Err() != nil:
		// The whole grid was interrupted, not this run alone.
		res.Reason = model.ReasonAborted
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		res.Reason = model.ReasonTimeout
	case errors.Is(err, adapter.ErrBackendUnavailable):
		res.Reason = model.ReasonUnavailable
	default:
		res.Reason = model.ReasonBackendError
	}
}

// triggerDetected applies the scenario's function-calling assertion. An
// explicit trigger string is an exact (case-insensitive) containment
// check; otherwise the scored keyword heuristic decides: +2 per scenario
// keyword, +1 per generic structured pattern, detected at score >= 3.
func triggerDetected(sc model.Scenario, text string) bool {
	lower := strings.ToLower(text)

	if sc.Trigger != "" {
		return strings.Contains(lower, strings.ToLower(sc.Trigger))
	}

	score := 0
	for _, kw := range sc.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += 2
		}
	}
	for _, p := range structuredPatterns {
		if strings.Contains(lower, p) {
			score++
		}
	}
	return score >= 3
}

// sleepCtx waits for d unless the context dies first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
