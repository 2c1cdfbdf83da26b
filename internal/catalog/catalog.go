/*
PURPOSE:
  Read-only provider of the backend and scenario catalogs.
  Frozen for the duration of a grid execution.

REQUIREMENTS:
  User-specified:
  - Expose {scenario_id -> Scenario} and {backend_id -> BackendSpec}.
  - ScenariosForCategory with insertion-order iteration (deterministic
    report display; cross product correctness does not depend on it).

  Implementation-discovered:
  - Needs validation at load time: duplicate IDs, missing URL, and a grid
    with zero LLM or zero TTS backends are all fatal (nothing to test).

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli, internal/grid
  - Uses: internal/config, internal/model

ERROR HANDLING:
  - All load failures wrap ErrCatalogLoad; the CLI exits non-zero on it.
  - After New() returns, no method can fail.

IMPLEMENTATION RULES:
  - Slices keep insertion order; maps are lookup only.
  - No mutation after New(). A backend removed from config mid-run is
    irrelevant: runs hold the already-bound spec.

USAGE:
  cat, err := catalog.New(cfg)
  for _, s := range cat.EnabledScenarios() { ... }

SELF-HEALING INSTRUCTIONS:
  - If adding a category, extend defaults.go and the Category constants.

RELATED FILES:
  - internal/catalog/defaults.go
  - internal/config/config.go

MAINTENANCE:
  - Update validation when BackendSpec grows required fields.
*/

package catalog

import (
	"errors"
	"fmt"

	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/model"
)

// ErrCatalogLoad marks fatal startup failures: the harness cannot proceed
// without backend and scenario definitions.
var ErrCatalogLoad = errors.New("catalog load failed")

// Catalog holds the frozen backend and scenario sets for one grid execution.
type Catalog struct {
	scenarios  []model.Scenario
	scenarioID map[string]model.Scenario

	backends  []model.BackendSpec
	backendID map[string]model.BackendSpec

	llms []model.BackendSpec
	tts  []model.BackendSpec

	enabled map[model.Category]bool // nil means all categories enabled
}

// New builds a catalog from configuration. When the config defines no
// scenarios, the built-in default set is used.
func New(cfg *config.Config) (*Catalog, error) {
	c := &Catalog{
		scenarioID: make(map[string]model.Scenario),
		backendID:  make(map[string]model.BackendSpec),
	}

	if len(cfg.Categories) > 0 {
		c.enabled = make(map[model.Category]bool, len(cfg.Categories))
		for _, cat := range cfg.Categories {
			c.enabled[cat] = true
		}
	}

	scenarios := cfg.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	for _, s := range scenarios {
		if s.ID == "" || s.Prompt == "" {
			return nil, fmt.Errorf("%w: scenario %q needs id and prompt", ErrCatalogLoad, s.ID)
		}
		if _, dup := c.scenarioID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario id %q", ErrCatalogLoad, s.ID)
		}
		c.scenarios = append(c.scenarios, s)
		c.scenarioID[s.ID] = s
	}

	for _, b := range cfg.Backends {
		if b.ID == "" || b.URL == "" {
			return nil, fmt.Errorf("%w: backend %q needs id and url", ErrCatalogLoad, b.ID)
		}
		if _, dup := c.backendID[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate backend id %q", ErrCatalogLoad, b.ID)
		}
		switch b.Kind {
		case model.KindLLM:
			c.llms = append(c.llms, b)
		case model.KindTTS:
			c.tts = append(c.tts, b)
		default:
			return nil, fmt.Errorf("%w: backend %q has unknown kind %q", ErrCatalogLoad, b.ID, b.Kind)
		}
		c.backends = append(c.backends, b)
		c.backendID[b.ID] = b
	}

	if len(c.llms) == 0 {
		return nil, fmt.Errorf("%w: no LLM backends configured", ErrCatalogLoad)
	}
	if len(c.tts) == 0 {
		return nil, fmt.Errorf("%w: no TTS backends configured", ErrCatalogLoad)
	}

	return c, nil
}

// Scenario looks up one scenario by id.
func (c *Catalog) Scenario(id string) (model.Scenario, bool) {
	s, ok := c.scenarioID[id]
	return s, ok
}

// Backend looks up one backend by id.
func (c *Catalog) Backend(id string) (model.BackendSpec, bool) {
	b, ok := c.backendID[id]
	return b, ok
}

// Backends returns every configured backend in insertion order.
func (c *Catalog) Backends() []model.BackendSpec { return c.backends }

// LLMBackends returns the LLM side of the grid in insertion order.
func (c *Catalog) LLMBackends() []model.BackendSpec { return c.llms }

// TTSBackends returns the TTS side of the grid in insertion order.
func (c *Catalog) TTSBackends() []model.BackendSpec { return c.tts }

// ScenariosForCategory returns scenarios of one category in insertion order.
func (c *Catalog) ScenariosForCategory(cat model.Category) []model.Scenario {
	var out []model.Scenario
	for _, s := range c.scenarios {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

// EnabledScenarios returns every scenario whose category is enabled for
// this run, in insertion order.
func (c *Catalog) EnabledScenarios() []model.Scenario {
	if c.enabled == nil {
		return c.scenarios
	}
	var out []model.Scenario
	for _, s := range c.scenarios {
		if c.enabled[s.Category] {
			out = append(out, s)
		}
	}
	return out
}
