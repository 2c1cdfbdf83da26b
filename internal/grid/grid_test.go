package grid

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruiserlab/voicegrid/internal/adapter"
	"github.com/cruiserlab/voicegrid/internal/catalog"
	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/report"
)

type fakeBackend struct {
	spec    model.BackendSpec
	latency time.Duration
	err     error
	block   bool
	calls   atomic.Int64
}

func (f *fakeBackend) Spec() model.BackendSpec { return f.spec }

func (f *fakeBackend) Invoke(ctx context.Context, input string) (adapter.Invocation, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return adapter.Invocation{}, ctx.Err()
	}
	if f.err != nil {
		return adapter.Invocation{}, f.err
	}
	start := time.Now()
	inv := adapter.Invocation{
		Start:         start,
		FirstResponse: start.Add(f.latency),
		End:           start.Add(f.latency),
	}
	if f.spec.Kind == model.KindLLM {
		inv.Text = "A short assistant reply."
	} else {
		inv.Audio = []byte("wav")
	}
	return inv, nil
}

type nullProbe struct{}

func (nullProbe) GPU() bool { return false }
func (nullProbe) Sample(ctx context.Context) (model.ResourceSample, error) {
	return model.ResourceSample{At: time.Now(), MemoryUsedMB: 64, MemoryTotalMB: 1024}, nil
}

// testGrid wires a 2x2 grid of fakes over one audio scenario.
func testGrid(t *testing.T) (*Orchestrator, map[string]*fakeBackend) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ConcurrencyLimit = 2
	cfg.RetryCount = 1
	cfg.RetryDelay = 0
	cfg.RunTimeoutSeconds = 5
	cfg.SampleIntervalMS = 5
	cfg.Backends = []model.BackendSpec{
		{ID: "llm-a", Kind: model.KindLLM, URL: "http://llm-a"},
		{ID: "llm-b", Kind: model.KindLLM, URL: "http://llm-b"},
		{ID: "tts-x", Kind: model.KindTTS, URL: "http://tts-x"},
		{ID: "tts-y", Kind: model.KindTTS, URL: "http://tts-y"},
	}
	cfg.Scenarios = []model.Scenario{
		{ID: "ping", Category: model.CategoryBasicLatency, Prompt: "Hello", WantsAudio: true},
	}

	cat, err := catalog.New(cfg)
	require.NoError(t, err)

	fakes := map[string]*fakeBackend{}
	for _, spec := range cfg.Backends {
		fakes[spec.ID] = &fakeBackend{spec: spec}
	}
	fakes["llm-a"].latency = 10 * time.Millisecond
	fakes["llm-b"].latency = 50 * time.Millisecond
	fakes["tts-x"].latency = 5 * time.Millisecond
	fakes["tts-y"].latency = 30 * time.Millisecond

	o := New(cfg, cat, nil)
	o.Probe = nullProbe{}
	o.NewAdapter = func(spec model.BackendSpec) (adapter.Adapter, error) {
		return fakes[spec.ID], nil
	}
	return o, fakes
}

func TestExecuteCoversFullCrossProduct(t *testing.T) {
	o, _ := testGrid(t)
	require.Equal(t, 4, o.Total())

	results, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	seen := map[string]bool{}
	for _, res := range results {
		assert.Equal(t, model.StatusSuccess, res.Status)
		assert.NotEmpty(t, res.GridID)
		seen[res.PairID()] = true
	}
	assert.Len(t, seen, 4, "exactly one result per combination")

	// Fastest pair wins the latency-critical tier.
	rep := report.Build(results, 5)
	top := rep.Rankings[0]
	require.Equal(t, report.TierLatencyCritical, top.Tier)
	require.NotEmpty(t, top.Pairs)
	assert.Equal(t, "llm-a+tts-x", top.Pairs[0].PairID)
}

func TestExecuteIsolatesUnreachableBackend(t *testing.T) {
	o, fakes := testGrid(t)
	fakes["llm-b"].err = fmt.Errorf("%w: connection refused", adapter.ErrBackendUnavailable)

	results, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4, "grid completes despite the dead backend")

	for _, res := range results {
		switch res.LLMBackend {
		case "llm-b":
			assert.Equal(t, model.StatusFailed, res.Status)
			assert.Equal(t, model.ReasonUnavailable, res.Reason)
			assert.Equal(t, 2, res.Attempts, "retry_count + 1 attempts")
		default:
			assert.Equal(t, model.StatusSuccess, res.Status)
		}
	}
	// Two combinations hit llm-b, two attempts each.
	assert.Equal(t, int64(4), fakes["llm-b"].calls.Load())
}

func TestExecuteInterruptRecordsAbortedResults(t *testing.T) {
	o, fakes := testGrid(t)
	o.cfg.ConcurrencyLimit = 1
	for _, f := range fakes {
		f.block = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	results, err := o.Execute(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4, "interrupt still yields one result per combination")

	for _, res := range results {
		assert.Equal(t, model.StatusFailed, res.Status)
		assert.Equal(t, model.ReasonAborted, res.Reason)
	}
}

func TestCursorEnumeratesLazily(t *testing.T) {
	c := &cursor{
		llms:      []model.BackendSpec{{ID: "l1"}, {ID: "l2"}},
		tts:       []model.BackendSpec{{ID: "t1"}},
		scenarios: []model.Scenario{{ID: "s1"}, {ID: "s2"}},
	}

	var order []string
	for {
		combo, ok := c.next()
		if !ok {
			break
		}
		order = append(order, combo.LLM.ID+"/"+combo.TTS.ID+"/"+combo.Scenario.ID)
	}

	assert.Equal(t, []string{
		"l1/t1/s1", "l1/t1/s2",
		"l2/t1/s1", "l2/t1/s2",
	}, order)
}
