/*
PURPOSE:
  Reduces the frozen RunResult set into per-pair aggregates and ranked
  recommendations per use-case tier.

REQUIREMENTS:
  User-specified:
  - Per pair: mean and p95 total latency, failure rate, resource peak.
  - Tiers: latency-critical (mean total asc), minimal-resource (peak
    memory asc), quality (function-call success desc, latency tie-break),
    multilingual (multilingual success desc, latency tie-break).
  - Deterministic: identical input yields identical ranking; final
    tie-break is lexical pair identifier.

  Implementation-discovered:
  - `partial` feeds latency statistics; `failed` is excluded from latency
    aggregates but counted in failure rate.
  - The quality key's denominator is responsive function-calling runs
    only; pairs with none rank last in that tier.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/model
  - Consumed by: internal/output (CSV matrix, tier tables)

ERROR HANDLING:
  - None. Build is pure over its input; re-running it over the same
    result set always yields the same report.

IMPLEMENTATION RULES:
  - No mutation of the input slice; sorts operate on copies.
  - p95 uses the sorted ceil-index convention.

USAGE:
  rep := report.Build(results, 5)

SELF-HEALING INSTRUCTIONS:
  - New tiers: add a constant and a comparator case in tierLess.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/table.go

MAINTENANCE:
  - Keep scoring rules in tierRankings only; nothing else may rank.
*/

package report

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/cruiserlab/voicegrid/internal/model"
)

// Tier is a use-case-oriented ranking category.
type Tier string

const (
	TierLatencyCritical Tier = "latency-critical"
	TierQualityCritical Tier = "quality-critical"
	TierMultilingual    Tier = "multilingual"
	TierMinimalResource Tier = "minimal-resource"
)

// Tiers lists every ranking tier in display order.
var Tiers = []Tier{TierLatencyCritical, TierQualityCritical, TierMultilingual, TierMinimalResource}

// PairAggregate is the reduction of all runs for one backend pair.
type PairAggregate struct {
	PairID     string `json:"pair_id"`
	LLMBackend string `json:"llm_backend"`
	TTSBackend string `json:"tts_backend"`

	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`

	// FailureRate is failed / attempted.
	FailureRate float64 `json:"failure_rate"`

	// Latency aggregates cover responsive runs only (success + partial).
	MeanTotalLatency time.Duration `json:"mean_total_latency_ns"`
	P95TotalLatency  time.Duration `json:"p95_total_latency_ns"`
	MeanFirstToken   time.Duration `json:"mean_first_token_ns"`
	MeanTTSLatency   time.Duration `json:"mean_tts_latency_ns"`

	// FunctionCallRate is successes over responsive function-calling
	// runs; FunctionCallRuns is that denominator.
	FunctionCallRate float64 `json:"function_call_rate"`
	FunctionCallRuns int     `json:"function_call_runs"`

	// MultilingualRate is successes over attempted multilingual runs.
	MultilingualRate float64 `json:"multilingual_rate"`
	MultilingualRuns int     `json:"multilingual_runs"`

	PeakMemoryMB float64 `json:"peak_memory_mb"`
	GPUMeasured  bool    `json:"gpu_measured"`
}

// Ranking is the ordered top-N for one tier.
type Ranking struct {
	Tier  Tier
	Pairs []PairAggregate
}

// Report is the derived, read-only view over the full result set.
// Rebuilt fully on each generation; never partially updated.
type Report struct {
	GridID   string
	TopN     int
	Pairs    []PairAggregate // full matrix, sorted by pair id
	Rankings []Ranking
}

// Build reduces the result set. Pure: same input, same output.
func Build(results []model.RunResult, topN int) Report {
	if topN <= 0 {
		topN = 5
	}

	rep := Report{TopN: topN}
	if len(results) > 0 {
		rep.GridID = results[0].GridID
	}

	groups := lo.GroupBy(results, func(r model.RunResult) string { return r.PairID() })
	rep.Pairs = lo.Map(lo.Keys(groups), func(id string, _ int) PairAggregate {
		return aggregate(id, groups[id])
	})
	sort.Slice(rep.Pairs, func(i, j int) bool { return rep.Pairs[i].PairID < rep.Pairs[j].PairID })

	for _, tier := range Tiers {
		ranked := make([]PairAggregate, len(rep.Pairs))
		copy(ranked, rep.Pairs)
		less := tierLess(tier)
		sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		rep.Rankings = append(rep.Rankings, Ranking{Tier: tier, Pairs: ranked})
	}

	return rep
}

func aggregate(pairID string, runs []model.RunResult) PairAggregate {
	agg := PairAggregate{
		PairID:    pairID,
		Attempted: len(runs),
	}
	if len(runs) > 0 {
		agg.LLMBackend = runs[0].LLMBackend
		agg.TTSBackend = runs[0].TTSBackend
	}

	responsive := lo.Filter(runs, func(r model.RunResult, _ int) bool { return r.Responsive() })

	var fcSuccess int
	var mlSuccess int
	for _, r := range runs {
		switch r.Status {
		case model.StatusSuccess:
			agg.Succeeded++
		case model.StatusPartial:
			agg.Partial++
		case model.StatusFailed:
			agg.Failed++
		}

		if r.Category == model.CategoryFunctionCalling && r.Responsive() {
			agg.FunctionCallRuns++
			if r.Status == model.StatusSuccess {
				fcSuccess++
			}
		}
		if r.Category == model.CategoryMultilingual {
			agg.MultilingualRuns++
			if r.Status == model.StatusSuccess {
				mlSuccess++
			}
		}

		if r.Resources.PeakMemoryMB > agg.PeakMemoryMB {
			agg.PeakMemoryMB = r.Resources.PeakMemoryMB
		}
		if r.Resources.GPUMeasured {
			agg.GPUMeasured = true
		}
	}

	if agg.Attempted > 0 {
		agg.FailureRate = float64(agg.Failed) / float64(agg.Attempted)
	}
	if agg.FunctionCallRuns > 0 {
		agg.FunctionCallRate = float64(fcSuccess) / float64(agg.FunctionCallRuns)
	}
	if agg.MultilingualRuns > 0 {
		agg.MultilingualRate = float64(mlSuccess) / float64(agg.MultilingualRuns)
	}

	if len(responsive) > 0 {
		totals := lo.Map(responsive, func(r model.RunResult, _ int) float64 {
			return float64(r.TotalLatency)
		})
		agg.MeanTotalLatency = time.Duration(mean(totals))
		agg.P95TotalLatency = time.Duration(percentile(totals, 0.95))

		agg.MeanFirstToken = time.Duration(mean(lo.Map(responsive, func(r model.RunResult, _ int) float64 {
			return float64(r.FirstToken)
		})))

		ttsRuns := lo.Filter(responsive, func(r model.RunResult, _ int) bool { return r.TTSInvoked })
		if len(ttsRuns) > 0 {
			agg.MeanTTSLatency = time.Duration(mean(lo.Map(ttsRuns, func(r model.RunResult, _ int) float64 {
				return float64(r.TTSLatency)
			})))
		}
	}

	return agg
}

// tierLess returns the deterministic ordering rule for one tier. Every
// rule falls through to lexical pair id so equal keys cannot reorder.
func tierLess(tier Tier) func(a, b PairAggregate) bool {
	switch tier {
	case TierMinimalResource:
		return func(a, b PairAggregate) bool {
			if ar, br := a.responsiveCount(), b.responsiveCount(); (ar > 0) != (br > 0) {
				return ar > 0
			}
			if a.PeakMemoryMB != b.PeakMemoryMB {
				return a.PeakMemoryMB < b.PeakMemoryMB
			}
			return a.PairID < b.PairID
		}
	case TierQualityCritical:
		return func(a, b PairAggregate) bool {
			if (a.FunctionCallRuns > 0) != (b.FunctionCallRuns > 0) {
				return a.FunctionCallRuns > 0
			}
			if a.FunctionCallRate != b.FunctionCallRate {
				return a.FunctionCallRate > b.FunctionCallRate
			}
			if a.MeanTotalLatency != b.MeanTotalLatency {
				return a.MeanTotalLatency < b.MeanTotalLatency
			}
			return a.PairID < b.PairID
		}
	case TierMultilingual:
		return func(a, b PairAggregate) bool {
			if (a.MultilingualRuns > 0) != (b.MultilingualRuns > 0) {
				return a.MultilingualRuns > 0
			}
			if a.MultilingualRate != b.MultilingualRate {
				return a.MultilingualRate > b.MultilingualRate
			}
			if a.MeanTotalLatency != b.MeanTotalLatency {
				return a.MeanTotalLatency < b.MeanTotalLatency
			}
			return a.PairID < b.PairID
		}
	default: // TierLatencyCritical
		return func(a, b PairAggregate) bool {
			if ar, br := a.responsiveCount(), b.responsiveCount(); (ar > 0) != (br > 0) {
				return ar > 0
			}
			if a.MeanTotalLatency != b.MeanTotalLatency {
				return a.MeanTotalLatency < b.MeanTotalLatency
			}
			return a.PairID < b.PairID
		}
	}
}

func (p PairAggregate) responsiveCount() int {
	return p.Succeeded + p.Partial
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// percentile uses the sorted ceil-index convention over a copy.
func percentile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	idx := int(math.Ceil(float64(len(sorted)) * p))
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}
