/*
PURPOSE:
  Renders the ranked-recommendation summary per tier as terminal tables.

REQUIREMENTS:
  User-specified:
  - A short top-N per tier alongside the CSV matrix.

  Implementation-discovered:
  - Pairs that never responded still appear (with a dash for latency) so
    failures stay visible.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Consumes: internal/report.Report

ERROR HANDLING:
  - Writes to the given io.Writer; rendering itself cannot fail.

IMPLEMENTATION RULES:
  - tablewriter for layout; no manual column padding.

USAGE:
  output.RenderReport(os.Stdout, rep)

SELF-HEALING INSTRUCTIONS:
  - New tiers render automatically from report.Rankings.

RELATED FILES:
  - internal/report/report.go

MAINTENANCE:
  - Update columns when PairAggregate gains display-worthy metrics.
*/

package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/cruiserlab/voicegrid/internal/report"
)

// RenderReport prints the tier recommendations and the full matrix.
func RenderReport(w io.Writer, rep report.Report) {
	for _, ranking := range rep.Rankings {
		fmt.Fprintf(w, "\n%s (top %d)\n", ranking.Tier, rep.TopN)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Rank", "Combination", "Mean Total", "P95", "Fail Rate", "Func Calls", "Peak Mem"})
		for i, pair := range ranking.Pairs {
			table.Append([]string{
				fmt.Sprintf("%d", i+1),
				pair.PairID,
				latencyCell(pair),
				fmt.Sprintf("%.3fs", pair.P95TotalLatency.Seconds()),
				fmt.Sprintf("%.0f%%", pair.FailureRate*100),
				funcCallCell(pair),
				memCell(pair),
			})
		}
		table.Render()
	}
}

// RenderMatrix prints the full pair matrix, one row per combination.
func RenderMatrix(w io.Writer, rep report.Report) {
	fmt.Fprintf(w, "\nFull matrix (%d pairs)\n", len(rep.Pairs))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"LLM", "TTS", "Attempted", "Success", "Partial", "Failed", "Mean Total", "First Token"})
	for _, pair := range rep.Pairs {
		table.Append([]string{
			pair.LLMBackend,
			pair.TTSBackend,
			fmt.Sprintf("%d", pair.Attempted),
			fmt.Sprintf("%d", pair.Succeeded),
			fmt.Sprintf("%d", pair.Partial),
			fmt.Sprintf("%d", pair.Failed),
			latencyCell(pair),
			fmt.Sprintf("%.3fs", pair.MeanFirstToken.Seconds()),
		})
	}
	table.Render()
}

func latencyCell(pair report.PairAggregate) string {
	if pair.Succeeded+pair.Partial == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3fs", pair.MeanTotalLatency.Seconds())
}

func funcCallCell(pair report.PairAggregate) string {
	if pair.FunctionCallRuns == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", pair.FunctionCallRate*100)
}

func memCell(pair report.PairAggregate) string {
	if !pair.GPUMeasured {
		return "not measured"
	}
	return fmt.Sprintf("%.0fMB", pair.PeakMemoryMB)
}
