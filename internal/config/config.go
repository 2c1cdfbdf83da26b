/*
PURPOSE:
  Defines the configuration structure and loading logic for Voicegrid.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Declarative list of backend specs (kind, identifier, connection params).
  - Selection of scenario categories to run.
  - Tuning knobs: concurrency_limit, retry_count, run_timeout_seconds,
    sample_interval_ms, top_n.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Scenario definitions are optional; the catalog falls back to the
    built-in set when the file defines none.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/catalog, internal/grid
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Returns optional error if config file is missing (might fall back to defaults).

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 30s run timeout, 250ms samples).

USAGE:
  cfg, err := config.Load("voicegrid.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Load() defaults.

RELATED FILES:
  - internal/cli/root.go
  - internal/catalog/catalog.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cruiserlab/voicegrid/internal/model"
)

// Config represents the full configuration for Voicegrid.
type Config struct {
	// Backends lists every LLM and TTS endpoint under test.
	Backends []model.BackendSpec `yaml:"backends"`

	// Scenarios overrides the built-in scenario catalog when non-empty.
	Scenarios []model.Scenario `yaml:"scenarios"`

	// Categories enables scenario categories for the run. Empty means all.
	Categories []model.Category `yaml:"categories"`

	OutputDir   string `yaml:"output_dir"`
	MatrixFile  string `yaml:"matrix_file"`  // per-pair CSV
	ResultsFile string `yaml:"results_file"` // raw JSONL

	// ConcurrencyLimit bounds parallel runs. <= 0 means host-detected
	// (number of CPUs). Most constrained deployments pin this to 1 so
	// queueing delay is not attributed to backend compute.
	ConcurrencyLimit int `yaml:"concurrency_limit"`

	// RetryCount is the number of additional attempts after a transient
	// connectivity failure. Backend errors are never retried.
	RetryCount int           `yaml:"retry_count"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	RunTimeoutSeconds int `yaml:"run_timeout_seconds"`
	SampleIntervalMS  int `yaml:"sample_interval_ms"`
	TopN              int `yaml:"top_n"`

	// ConnectTimeout bounds the wait for the first response byte
	// (covers connection setup and model loading on the server side).
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:         ".",
		MatrixFile:        "grid_matrix.csv",
		ResultsFile:       "grid_results.jsonl",
		ConcurrencyLimit:  0, // host-detected
		RetryCount:        1,
		RetryDelay:        2 * time.Second,
		RunTimeoutSeconds: 30,
		SampleIntervalMS:  250,
		TopN:              5,
		ConnectTimeout:    10 * time.Second,
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		// Search for defaults
		defaults := []string{"voicegrid.yaml", "grid.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			// No config file found, return default
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// RunTimeout returns the per-run wall-clock budget.
func (c *Config) RunTimeout() time.Duration {
	if c.RunTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// SampleInterval returns the resource sampling period.
func (c *Config) SampleInterval() time.Duration {
	if c.SampleIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.SampleIntervalMS) * time.Millisecond
}

// EffectiveConcurrency resolves the configured limit, falling back to the
// host-detected slot count.
func (c *Config) EffectiveConcurrency() int {
	if c.ConcurrencyLimit > 0 {
		return c.ConcurrencyLimit
	}
	return runtime.NumCPU()
}
