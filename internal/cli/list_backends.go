/*
PURPOSE:
  Defines the 'list-backends' subcommand.
  Helps debug connectivity before committing to a full grid.

REQUIREMENTS:
  User-specified:
  - List configured backends with a reachability probe.

  Implementation-discovered:
  - Useful validation step before full run.

ARCHITECTURE INTEGRATION:
  - Uses: internal/config, internal/catalog

ERROR HANDLING:
  - Prints per-backend probe failures; only catalog problems abort.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  voicegrid list-backends

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/catalog/catalog.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cruiserlab/voicegrid/internal/catalog"
	"github.com/cruiserlab/voicegrid/internal/config"
)

var listBackendsCmd = &cobra.Command{
	Use:   "list-backends",
	Short: "List configured backends and probe reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cat, err := catalog.New(cfg)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 5 * time.Second}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Kind", "URL", "Model", "Reachable"})
		for _, b := range cat.Backends() {
			table.Append([]string{
				b.ID, string(b.Kind), b.URL, b.Model,
				probe(cmd.Context(), client, b.URL),
			})
		}
		table.Render()

		return nil
	},
}

// probe does a cheap GET against the backend base URL. Any HTTP response
// at all counts as reachable; only transport failures do not.
func probe(ctx context.Context, client *http.Client, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "no (" + err.Error() + ")"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "no"
	}
	resp.Body.Close()
	return "yes"
}

func init() {
	rootCmd.AddCommand(listBackendsCmd)
}
