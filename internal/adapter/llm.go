/*
PURPOSE:
  LLM backend adapter speaking the Ollama-style /api/generate protocol.
  Streams tokens so time-to-first-token is a real measurement.

REQUIREMENTS:
  User-specified:
  - Report first-token time when the protocol is streaming-capable.
  - Resilience against "garbage" JSON (invalid chunks).

  Implementation-discovered:
  - A stream that ends without a final done marker is a malformed
    payload, not a transport failure.
  - API-side errors arrive as a JSON field inside an HTTP 200.

ARCHITECTURE INTEGRATION:
  - Called by: internal/runner
  - Uses: internal/model, internal/output

ERROR HANDLING:
  - Connection/transport failures wrap ErrBackendUnavailable.
  - Bad status, API error field, or incomplete stream wrap ErrBackendError.

IMPLEMENTATION RULES:
  - Parse streaming JSON line-by-line.
  - No retries here. Ever.

USAGE:
  a := adapter.NewLLM(spec, client)
  inv, err := a.Invoke(ctx, prompt)

SELF-HEALING INSTRUCTIONS:
  - If the backend API changes, update the endpoint (/api/generate) and
    chunk fields.

RELATED FILES:
  - internal/adapter/adapter.go

MAINTENANCE:
  - Update for new generation options.
*/

package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/output"
)

// LLM invokes an Ollama-compatible completion endpoint.
type LLM struct {
	spec   model.BackendSpec
	client *http.Client
}

// NewLLM creates an adapter for one LLM backend.
func NewLLM(spec model.BackendSpec, client *http.Client) *LLM {
	return &LLM{spec: spec, client: client}
}

func (a *LLM) Spec() model.BackendSpec { return a.spec }

// Invoke runs one streaming completion and captures the timing envelope.
func (a *LLM) Invoke(ctx context.Context, input string) (Invocation, error) {
	payload := map[string]interface{}{
		"model":  a.spec.Model,
		"prompt": input,
		"stream": true,
	}
	if len(a.spec.Options) > 0 {
		payload["options"] = a.spec.Options
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: marshal request: %w", ErrBackendError, err)
	}

	inv := Invocation{Start: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/generate", a.spec.URL), bytes.NewReader(reqBody))
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: build request: %w", ErrBackendError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Invocation{}, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Invocation{}, fmt.Errorf("%w: %s returned %s: %s",
			ErrBackendError, a.spec.ID, resp.Status, bytes.TrimSpace(body))
	}

	text, first, err := a.consumeStream(resp.Body)
	if err != nil {
		return Invocation{}, err
	}

	inv.End = time.Now()
	inv.Text = text
	inv.FirstResponse = first
	if inv.FirstResponse.IsZero() {
		// Not streaming in practice: first response equals end.
		inv.FirstResponse = inv.End
	}
	return inv, nil
}

// consumeStream reads line-delimited JSON chunks until the done marker.
func (a *LLM) consumeStream(body io.Reader) (string, time.Time, error) {
	var (
		text    bytes.Buffer
		first   time.Time
		gotDone bool
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}

		// Garbage resilience: Ignore JSON errors
		if err := json.Unmarshal(line, &chunk); err != nil {
			output.Logger.Warn("Skipping invalid JSON chunk", "backend", a.spec.ID, "chunk", string(line))
			continue
		}

		if chunk.Error != "" {
			return "", first, fmt.Errorf("%w: %s API error: %s", ErrBackendError, a.spec.ID, chunk.Error)
		}

		if chunk.Response != "" {
			if first.IsZero() {
				first = time.Now()
			}
			text.WriteString(chunk.Response)
		}

		if chunk.Done {
			gotDone = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		// The connection dropped mid-stream.
		return "", first, unavailable(err)
	}
	if !gotDone {
		return "", first, fmt.Errorf("%w: %s stream ended without done marker", ErrBackendError, a.spec.ID)
	}
	return text.String(), first, nil
}
