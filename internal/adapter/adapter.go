/*
PURPOSE:
  Uniform capability wrapper around one inference backend.
  Normalizes invocation and timing across LLM and TTS endpoints.

REQUIREMENTS:
  User-specified:
  - invoke(input) -> {output, start, first response, end}.
  - Distinguish "endpoint unreachable" from "endpoint answered badly".

  Implementation-discovered:
  - Transport errors need a stable sentinel so the runner can apply its
    retry policy without string matching.
  - Adapters must NOT retry internally; retry policy belongs to the
    Combination Runner.

ARCHITECTURE INTEGRATION:
  - Called by: internal/runner
  - Uses: internal/model
  - The *http.Client is injected: one shared pool is acquired at harness
    start and released after the grid completes.

ERROR HANDLING:
  - ErrBackendUnavailable for connectivity/transport failures (retryable).
  - ErrBackendError for non-success status or malformed payload (final).

IMPLEMENTATION RULES:
  - Use net/http.
  - Per-call deadlines come from the caller's context, not the client.

USAGE:
  a, err := adapter.New(spec, client)
  inv, err := a.Invoke(ctx, "Hello")

SELF-HEALING INSTRUCTIONS:
  - If a new backend protocol appears, add a case to New().

RELATED FILES:
  - internal/adapter/llm.go
  - internal/adapter/tts.go

MAINTENANCE:
  - Update when backend wire protocols change.
*/

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cruiserlab/voicegrid/internal/model"
)

var (
	// ErrBackendUnavailable marks connectivity/transport failures.
	// The runner may retry these.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendError marks a reachable endpoint that returned a
	// non-success status or a malformed payload. Never retried.
	ErrBackendError = errors.New("backend error")
)

// Invocation is the timed outcome of one backend call.
type Invocation struct {
	Text  string
	Audio []byte

	Start         time.Time
	FirstResponse time.Time
	End           time.Time
}

// TimeToFirst is the latency to the first usable response fragment.
// For non-streaming backends it equals Total.
func (inv Invocation) TimeToFirst() time.Duration {
	return inv.FirstResponse.Sub(inv.Start)
}

// Total is the full invocation latency.
func (inv Invocation) Total() time.Duration {
	return inv.End.Sub(inv.Start)
}

// Adapter is the uniform invocation contract for one backend.
type Adapter interface {
	Spec() model.BackendSpec
	Invoke(ctx context.Context, input string) (Invocation, error)
}

// New builds the adapter matching the spec's kind.
func New(spec model.BackendSpec, client *http.Client) (Adapter, error) {
	switch spec.Kind {
	case model.KindLLM:
		return NewLLM(spec, client), nil
	case model.KindTTS:
		return NewTTS(spec, client), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q for %s", spec.Kind, spec.ID)
	}
}

// unavailable wraps a transport-level failure so the runner's retry policy
// can match it while the original error stays inspectable.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// stringOption reads a string out of the spec's free-form options map.
func stringOption(spec model.BackendSpec, key, fallback string) string {
	if v, ok := spec.Options[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
