package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cruiserlab/voicegrid/internal/config"
	"github.com/cruiserlab/voicegrid/internal/output"
	"github.com/cruiserlab/voicegrid/internal/report"
)

var reportResultsPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Rebuild rankings from a previous run's JSONL result log",
	Long: `Regenerates the aggregated matrix and tier recommendations from raw
results without re-running the grid. Report generation is idempotent:
the same result log always produces the same ranking.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if topNOverride > 0 {
			cfg.TopN = topNOverride
		}

		path := reportResultsPath
		if path == "" {
			path = filepath.Join(cfg.OutputDir, cfg.ResultsFile)
		}

		results, err := output.ReadResults(path)
		if err != nil {
			return fmt.Errorf("failed to read results from %s: %w", path, err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no results found in %s", path)
		}

		rep := report.Build(results, cfg.TopN)
		output.RenderMatrix(os.Stdout, rep)
		output.RenderReport(os.Stdout, rep)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportResultsPath, "results", "", "Path to a JSONL result log (default: output dir)")
	reportCmd.Flags().IntVar(&topNOverride, "top-n", 0, "Recommendations per tier (default 5)")
}
