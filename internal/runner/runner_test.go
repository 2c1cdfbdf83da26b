package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruiserlab/voicegrid/internal/adapter"
	"github.com/cruiserlab/voicegrid/internal/model"
)

// fakeAdapter scripts one backend's behavior for a run.
type fakeAdapter struct {
	spec  model.BackendSpec
	calls atomic.Int64

	// failuresBeforeSuccess makes the first N invocations fail with
	// ErrBackendUnavailable before succeeding.
	failuresBeforeSuccess int
	err                   error // when set, every invocation fails with it
	block                 bool  // when set, block until the context dies

	text    string
	audio   []byte
	ttf     time.Duration
	latency time.Duration
}

func (f *fakeAdapter) Spec() model.BackendSpec { return f.spec }

func (f *fakeAdapter) Invoke(ctx context.Context, input string) (adapter.Invocation, error) {
	n := f.calls.Add(1)

	if f.block {
		<-ctx.Done()
		return adapter.Invocation{}, ctx.Err()
	}
	if f.err != nil {
		return adapter.Invocation{}, f.err
	}
	if int(n) <= f.failuresBeforeSuccess {
		return adapter.Invocation{}, fmt.Errorf("%w: connection refused", adapter.ErrBackendUnavailable)
	}

	start := time.Now()
	ttf := f.ttf
	if ttf == 0 {
		ttf = f.latency
	}
	return adapter.Invocation{
		Text:          f.text,
		Audio:         f.audio,
		Start:         start,
		FirstResponse: start.Add(ttf),
		End:           start.Add(f.latency),
	}, nil
}

type nullProbe struct{}

func (nullProbe) GPU() bool { return false }
func (nullProbe) Sample(ctx context.Context) (model.ResourceSample, error) {
	return model.ResourceSample{At: time.Now(), MemoryUsedMB: 100, MemoryTotalMB: 1000}, nil
}

func llmFake() *fakeAdapter {
	return &fakeAdapter{
		spec:    model.BackendSpec{ID: "llm-a", Kind: model.KindLLM, URL: "http://llm"},
		text:    "The weather in San Francisco calls for a mild temperature and a sunny forecast.",
		ttf:     10 * time.Millisecond,
		latency: 40 * time.Millisecond,
	}
}

func ttsFake() *fakeAdapter {
	return &fakeAdapter{
		spec:    model.BackendSpec{ID: "tts-a", Kind: model.KindTTS, URL: "http://tts"},
		audio:   []byte("RIFF fake wav"),
		latency: 20 * time.Millisecond,
	}
}

func newRunner(llm, tts *fakeAdapter, opts Options) *Runner {
	if opts.GridID == "" {
		opts.GridID = "test-grid"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.SampleInterval == 0 {
		opts.SampleInterval = 5 * time.Millisecond
	}
	return New(llm, tts, nullProbe{}, opts)
}

func TestRunSuccessWithAudio(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	r := newRunner(llm, tts, Options{RetryCount: 1})

	res := r.Run(context.Background(), model.Scenario{
		ID: "dialogue-greeting", Category: model.CategoryDialogue,
		Prompt: "Hello", WantsAudio: true,
	})

	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.Equal(t, "llm-a", res.LLMBackend)
	assert.Equal(t, "tts-a", res.TTSBackend)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.TTSInvoked)
	assert.Equal(t, len(tts.audio), res.AudioBytes)
	assert.Equal(t, len(llm.text), res.OutputChars)
	assert.Equal(t, res.LLMLatency+res.TTSLatency, res.TotalLatency)
	assert.Greater(t, res.FirstToken, time.Duration(0))
}

func TestRunWithoutAudioNeverInvokesTTS(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	r := newRunner(llm, tts, Options{})

	res := r.Run(context.Background(), model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusSuccess, res.Status)
	assert.False(t, res.TTSInvoked)
	assert.Zero(t, res.TTSLatency)
	assert.Equal(t, int64(0), tts.calls.Load(), "TTS adapter must not be invoked")
}

func TestRunRetriesTransientUnavailability(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.failuresBeforeSuccess = 1
	r := newRunner(llm, tts, Options{RetryCount: 1})

	res := r.Run(context.Background(), model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusSuccess, res.Status, "retry within budget must yield success")
	assert.Equal(t, 2, res.Attempts)
}

func TestRunExhaustsRetries(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.err = fmt.Errorf("%w: connection refused", adapter.ErrBackendUnavailable)
	r := newRunner(llm, tts, Options{RetryCount: 1})

	res := r.Run(context.Background(), model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.ReasonUnavailable, res.Reason)
	// Exactly retry_count + 1 attempts.
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int64(2), llm.calls.Load())
}

func TestRunDoesNotRetryBackendError(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.err = fmt.Errorf("%w: 500 internal", adapter.ErrBackendError)
	r := newRunner(llm, tts, Options{RetryCount: 3})

	res := r.Run(context.Background(), model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.ReasonBackendError, res.Reason)
	assert.Equal(t, 1, res.Attempts, "backend errors are final")
}

func TestRunTimesOut(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.block = true
	r := newRunner(llm, tts, Options{Timeout: 50 * time.Millisecond})

	res := r.Run(context.Background(), model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.ReasonTimeout, res.Reason)
}

func TestRunAbortedByExternalInterrupt(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.block = true
	r := newRunner(llm, tts, Options{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := r.Run(ctx, model.Scenario{
		ID: "intro", Category: model.CategoryBasicLatency, Prompt: "Hello",
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.ReasonAborted, res.Reason)
}

func TestRunTriggerMismatchIsPartial(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.text = "I cannot help with that."
	r := newRunner(llm, tts, Options{})

	res := r.Run(context.Background(), model.Scenario{
		ID: "fc-weather", Category: model.CategoryFunctionCalling,
		Prompt:           "What's the weather like in San Francisco?",
		ExpectedFunction: "get_weather",
		Keywords:         []string{"weather", "temperature", "forecast"},
	})

	assert.Equal(t, model.StatusPartial, res.Status)
	assert.Empty(t, res.Reason)
	assert.Greater(t, res.TotalLatency, time.Duration(0), "partial runs keep latency data")
}

func TestRunTriggerMatchIsSuccess(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	r := newRunner(llm, tts, Options{})

	res := r.Run(context.Background(), model.Scenario{
		ID: "fc-weather", Category: model.CategoryFunctionCalling,
		Prompt:   "What's the weather like in San Francisco?",
		Keywords: []string{"weather", "temperature", "forecast"},
	})

	assert.Equal(t, model.StatusSuccess, res.Status)
}

func TestRunExplicitTriggerMarker(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	llm.text = `{"tool_call": "get_weather", "city": "San Francisco"}`
	r := newRunner(llm, tts, Options{})

	res := r.Run(context.Background(), model.Scenario{
		ID: "fc-weather", Category: model.CategoryFunctionCalling,
		Prompt:  "What's the weather like in San Francisco?",
		Trigger: "tool_call",
	})

	assert.Equal(t, model.StatusSuccess, res.Status)
}

func TestRunTTSFailureFailsTheRun(t *testing.T) {
	llm, tts := llmFake(), ttsFake()
	tts.err = fmt.Errorf("%w: synthesis blew up", adapter.ErrBackendError)
	r := newRunner(llm, tts, Options{})

	res := r.Run(context.Background(), model.Scenario{
		ID: "dialogue-greeting", Category: model.CategoryDialogue,
		Prompt: "Hello", WantsAudio: true,
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.ReasonBackendError, res.Reason)
	assert.False(t, res.TTSInvoked)
}

func TestTriggerHeuristicScoring(t *testing.T) {
	sc := model.Scenario{
		Category: model.CategoryFunctionCalling,
		Keywords: []string{"music", "play", "audio"},
	}

	// Two keywords -> score 4.
	require.True(t, triggerDetected(sc, "Sure, I will play some music for you."))
	// One keyword plus generic patterns ("call", "function") -> score 4.
	require.True(t, triggerDetected(sc, "Calling the music function now."))
	// One keyword only -> score 2.
	require.False(t, triggerDetected(sc, "Here is some music trivia."))
	require.False(t, triggerDetected(sc, "I do not understand."))
}
