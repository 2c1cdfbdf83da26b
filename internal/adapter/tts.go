/*
PURPOSE:
  TTS backend adapter: JSON request in, WAV bytes out.
  Non-streaming, so first response time equals end time.

REQUIREMENTS:
  User-specified:
  - Accept text, return audio bytes (the harness records length only).

  Implementation-discovered:
  - Services report failures as a structured JSON body ({detail,
    error_code}); surface that instead of a bare status line.
  - An empty audio body on a 200 is a malformed payload.

ARCHITECTURE INTEGRATION:
  - Called by: internal/runner
  - Uses: internal/model

ERROR HANDLING:
  - Transport failures wrap ErrBackendUnavailable.
  - Non-success status, empty audio, or a non-audio content type wrap
    ErrBackendError.

IMPLEMENTATION RULES:
  - Endpoint path, voice, and language come from the spec options.
  - No retries here.

USAGE:
  a := adapter.NewTTS(spec, client)
  inv, err := a.Invoke(ctx, "Hello there")

SELF-HEALING INSTRUCTIONS:
  - If a backend uses another path, set options.path on its spec.

RELATED FILES:
  - internal/adapter/adapter.go

MAINTENANCE:
  - Update when the synthesis API contract changes.
*/

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cruiserlab/voicegrid/internal/model"
)

const defaultSynthesisPath = "/v1/generate/speech"

// TTS invokes a speech-synthesis endpoint.
type TTS struct {
	spec   model.BackendSpec
	client *http.Client
}

// NewTTS creates an adapter for one TTS backend.
func NewTTS(spec model.BackendSpec, client *http.Client) *TTS {
	return &TTS{spec: spec, client: client}
}

func (a *TTS) Spec() model.BackendSpec { return a.spec }

type synthesisRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

type synthesisError struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Invoke synthesizes one utterance and returns the audio bytes with timing.
func (a *TTS) Invoke(ctx context.Context, input string) (Invocation, error) {
	sReq := synthesisRequest{
		Text:     input,
		Voice:    stringOption(a.spec, "voice", a.spec.Model),
		Language: stringOption(a.spec, "language", ""),
	}
	reqBody, err := json.Marshal(sReq)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: marshal request: %w", ErrBackendError, err)
	}

	path := stringOption(a.spec, "path", defaultSynthesisPath)
	inv := Invocation{Start: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.spec.URL+path, bytes.NewReader(reqBody))
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: build request: %w", ErrBackendError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := a.client.Do(req)
	if err != nil {
		return Invocation{}, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var sErr synthesisError
		if json.Unmarshal(body, &sErr) == nil && sErr.Detail != "" {
			return Invocation{}, fmt.Errorf("%w: %s (%s): %s",
				ErrBackendError, a.spec.ID, resp.Status, sErr.Detail)
		}
		return Invocation{}, fmt.Errorf("%w: %s returned %s: %s",
			ErrBackendError, a.spec.ID, resp.Status, bytes.TrimSpace(body))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "audio/") {
		return Invocation{}, fmt.Errorf("%w: %s returned content type %q, want audio/*",
			ErrBackendError, a.spec.ID, ct)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Invocation{}, unavailable(err)
	}
	if len(audio) == 0 {
		return Invocation{}, fmt.Errorf("%w: %s returned empty audio", ErrBackendError, a.spec.ID)
	}

	inv.End = time.Now()
	inv.FirstResponse = inv.End
	inv.Audio = audio
	return inv, nil
}
