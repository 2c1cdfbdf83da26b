/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full grid and writes the report artifacts.

REQUIREMENTS:
  User-specified:
  - Exit code 0 on completion regardless of individual combination
    failures; non-zero only if the harness itself could not start
    (e.g. catalog failed to load).
  - Specific flags for overrides.

  Implementation-discovered:
  - SIGINT/SIGTERM cancel the grid context; partial results already
    recorded are preserved and the report still gets written.
  - The HTTP client pool is acquired here, once, and shared with every
    adapter for the grid's duration.

ARCHITECTURE INTEGRATION:
  - Calls: internal/grid, internal/report, internal/output
  - Uses: internal/config, internal/catalog

ERROR HANDLING:
  - Returns error if config load, catalog load, or output setup fails.
  - Run failures inside the grid are data, never an exit code.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Catalog -> Grid -> Report.

USAGE:
  voicegrid run --categories basic-latency,function-calling -o ./results

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/grid/grid.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cruiserlab/voicegrid/internal/catalog"
	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/grid"
	"github.com/cruiserlab/voicegrid/internal/model"
	"github.com/cruiserlab/voicegrid/internal/output"
	"github.com/cruiserlab/voicegrid/internal/report"
)

var (
	outputOverride      string
	categoriesOverride  []string
	concurrencyOverride int
	topNOverride        int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full backend grid",
	Long: `Executes every (LLM backend, TTS backend, scenario) combination with
bounded concurrency. Each run measures time-to-first-token, total and
synthesis latency, and samples GPU/host memory while the backends work.

One combination failing never aborts the grid: failures are recorded in
the result set and appear in the report. Raw results are written as
JSON Lines, the aggregated pair matrix as CSV, and ranked
recommendations per tier are printed at the end.`,
	Example: `  # Run with defaults (uses voicegrid.yaml)
  voicegrid run

  # Only latency and function calling scenarios, results under ./bench
  voicegrid run --categories basic-latency,function-calling -o ./bench

  # Pin to one run at a time for honest latency on shared hardware
  voicegrid run --concurrency 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if len(categoriesOverride) > 0 {
			cfg.Categories = cfg.Categories[:0]
			for _, c := range categoriesOverride {
				cfg.Categories = append(cfg.Categories, model.Category(c))
			}
		}
		if concurrencyOverride > 0 {
			cfg.ConcurrencyLimit = concurrencyOverride
		}
		if topNOverride > 0 {
			cfg.TopN = topNOverride
		}

		// 3. Catalog (the only fatal startup dependency)
		cat, err := catalog.New(cfg)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
		}

		jsonPath := filepath.Join(cfg.OutputDir, cfg.ResultsFile)
		jsonWriter, err := output.NewJSONWriter(jsonPath)
		if err != nil {
			return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
		}
		defer jsonWriter.Close()

		csvPath := filepath.Join(cfg.OutputDir, cfg.MatrixFile)
		csvWriter, err := output.NewCSVWriter(csvPath)
		if err != nil {
			return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
		}
		defer csvWriter.Close()

		// 4. Shared HTTP client pool for the grid's duration.
		// ResponseHeaderTimeout covers the time until the first response
		// byte, which is where server-side model loading happens.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.ConnectTimeout
		client := &http.Client{Transport: transport}
		defer client.CloseIdleConnections()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 5. Execute the grid
		results, err := grid.New(cfg, cat, client).Execute(ctx)
		if err != nil {
			return err
		}

		for _, res := range results {
			if err := jsonWriter.Write(res); err != nil {
				output.Logger.Error("Failed to write result to JSONL", "error", err)
			}
		}

		// 6. Reduce and export
		rep := report.Build(results, cfg.TopN)
		if err := csvWriter.WriteAll(rep); err != nil {
			output.Logger.Error("Failed to write matrix CSV", "error", err)
		}

		output.RenderMatrix(os.Stdout, rep)
		output.RenderReport(os.Stdout, rep)
		output.Logger.Info("Artifacts written", "results", jsonPath, "matrix", csvPath)

		// Individual combination failures are report content, not an
		// exit code.
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSONL)")
	runCmd.Flags().StringSliceVar(&categoriesOverride, "categories", nil, "Comma-separated scenario categories to run (default: all)")
	runCmd.Flags().IntVar(&concurrencyOverride, "concurrency", 0, "Max parallel runs (default: config, then host CPU count)")
	runCmd.Flags().IntVar(&topNOverride, "top-n", 0, "Recommendations per tier (default 5)")
}
