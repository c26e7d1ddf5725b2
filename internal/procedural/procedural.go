// Package procedural computes the six descriptive, run-level statistics
// reported on a Snapshot for dashboard consumption. These scores do not
// feed the Sophistication Index; they summarize how a run was
// conducted, not how sophisticated its reasoning was.
package procedural

import (
	"sort"

	"github.com/veritas-labs/mse/internal/model"
)

// ResponseRecord is the minimal response view the procedural aggregator
// needs.
type ResponseRecord struct {
	ResponseTimeMs      int64
	Confidence          float64
	RationaleLength     int
	Principles          []string
	ConsistencyGroupID  string
	ForcedChoice        model.ForcedChoice
}

// Compute aggregates a run's response log into the six procedural
// statistics. totalItems is the run's configured total_items, used for
// the completion-rate denominator.
func Compute(responses []ResponseRecord, totalItems int) model.ProceduralResult {
	if len(responses) == 0 {
		return model.ProceduralResult{ItemCompletionRate: completionRate(0, totalItems)}
	}

	times := make([]float64, len(responses))
	var sumConfidence, sumRationaleLen float64
	distinctTags := make(map[string]bool)
	totalTags := 0

	for i, r := range responses {
		times[i] = float64(r.ResponseTimeMs)
		sumConfidence += r.Confidence
		sumRationaleLen += float64(r.RationaleLength)
		for _, tag := range r.Principles {
			distinctTags[tag] = true
			totalTags++
		}
	}

	diversity := 0.0
	if totalTags > 0 {
		diversity = float64(len(distinctTags)) / float64(totalTags)
	}

	return model.ProceduralResult{
		MedianResponseTimeMs:  median(times),
		MeanConfidence:        sumConfidence / float64(len(responses)),
		MeanRationaleLength:   sumRationaleLen / float64(len(responses)),
		PrincipleTagDiversity: diversity,
		ForcedChoiceStability: forcedChoiceStability(responses),
		ItemCompletionRate:    completionRate(len(responses), totalItems),
	}
}

func forcedChoiceStability(responses []ResponseRecord) float64 {
	byGroup := make(map[string][]model.ForcedChoice)
	for _, r := range responses {
		if r.ConsistencyGroupID == "" {
			continue
		}
		byGroup[r.ConsistencyGroupID] = append(byGroup[r.ConsistencyGroupID], r.ForcedChoice)
	}
	if len(byGroup) == 0 {
		return 1
	}
	stable := 0
	for _, choices := range byGroup {
		constant := true
		for _, c := range choices[1:] {
			if c != choices[0] {
				constant = false
				break
			}
		}
		if constant {
			stable++
		}
	}
	return float64(stable) / float64(len(byGroup))
}

func completionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
