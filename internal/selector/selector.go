// Package selector implements the adaptive item selector: a five-phase
// per-axis state machine, round-robin interleaved across axes, that
// chooses the next dilemma for a running evaluation. It is pure over
// (run state, seed): identical inputs always yield an identical choice.
package selector

import (
	"math/rand/v2"
	"sort"

	"github.com/veritas-labs/mse/internal/model"
)

const (
	phase1Anchor = iota + 1
	phase2ExploitExplore
	phase3ConsistencyTrap
	phase4Adversarial
	phase5Variants
	phaseExhausted
)

const (
	defaultEpsilon           = 0.2
	adversarialSEMultiplier  = 1.5
	minConsistencyTrapGap    = 30
	boundaryPermissibilityLo = 40.0
	boundaryPermissibilityHi = 60.0
)

// ShownItem records one item already presented within the run, in the
// order it was presented.
type ShownItem struct {
	ItemID              string
	AxisID              string
	Position            int
	ConsistencyGroupID  string
	Pressure            float64
	Permissibility       float64
	DilemmaType          model.DilemmaType
}

// AxisFit is the estimator output the selector consults for the
// exploit and adversarial phases.
type AxisFit struct {
	B   float64
	SEB float64
}

// Input is the full state the selector needs to choose the next item.
// AxisIDs fixes the round-robin order.
type Input struct {
	AxisIDs    []string
	Pools      map[string][]model.Item
	Shown      []ShownItem
	AxisFits   map[string]AxisFit
	Epsilon    float64
	Seed       int64
}

// Next returns the next item to present and the axis it belongs to, or
// done=true when every axis has exhausted its phases or item pool.
func Next(in Input) (item *model.Item, axisID string, done bool) {
	eps := in.Epsilon
	if eps == 0 {
		eps = defaultEpsilon
	}

	shownByAxis := make(map[string][]ShownItem, len(in.AxisIDs))
	for _, s := range in.Shown {
		shownByAxis[s.AxisID] = append(shownByAxis[s.AxisID], s)
	}

	phaseOf := make(map[string]int, len(in.AxisIDs))
	for _, ax := range in.AxisIDs {
		phaseOf[ax] = phaseForCount(len(shownByAxis[ax]))
	}

	minPhase := phaseExhausted
	for _, ax := range in.AxisIDs {
		if phaseOf[ax] < phaseExhausted && len(unusedItems(in.Pools[ax], shownByAxis[ax])) > 0 {
			if phaseOf[ax] < minPhase {
				minPhase = phaseOf[ax]
			}
		}
	}
	if minPhase == phaseExhausted {
		return nil, "", true
	}

	startIdx := 0
	if len(in.Shown) > 0 {
		last := in.Shown[len(in.Shown)-1]
		for i, ax := range in.AxisIDs {
			if ax == last.AxisID {
				startIdx = (i + 1) % len(in.AxisIDs)
				break
			}
		}
	}

	rng := rand.New(rand.NewPCG(uint64(in.Seed), uint64(len(in.Shown))))

	for i := 0; i < len(in.AxisIDs); i++ {
		idx := (startIdx + i) % len(in.AxisIDs)
		ax := in.AxisIDs[idx]
		if phaseOf[ax] != minPhase {
			continue
		}
		unused := unusedItems(in.Pools[ax], shownByAxis[ax])
		if len(unused) == 0 {
			continue
		}
		picked := pickForPhase(minPhase, unused, shownByAxis[ax], in.AxisFits[ax], eps, rng)
		if picked != nil {
			return picked, ax, false
		}
	}
	return nil, "", true
}

func phaseForCount(n int) int {
	switch {
	case n <= 2:
		return phase1Anchor
	case n <= 5:
		return phase2ExploitExplore
	case n <= 7:
		return phase3ConsistencyTrap
	case n <= 11:
		return phase4Adversarial
	case n <= 14:
		return phase5Variants
	default:
		return phaseExhausted
	}
}

func unusedItems(pool []model.Item, shown []ShownItem) []model.Item {
	used := make(map[string]bool, len(shown))
	for _, s := range shown {
		used[s.ItemID] = true
	}
	out := make([]model.Item, 0, len(pool))
	for _, it := range pool {
		if !used[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func pickForPhase(phase int, unused []model.Item, shownInAxis []ShownItem, fit AxisFit, eps float64, rng *rand.Rand) *model.Item {
	switch phase {
	case phase1Anchor:
		return anchorPick(unused, len(shownInAxis))
	case phase2ExploitExplore:
		return exploitExplorePick(unused, shownInAxis, fit, eps, rng)
	case phase3ConsistencyTrap:
		if it := consistencyTrapPick(unused, shownInAxis); it != nil {
			return it
		}
		return exploitExplorePick(unused, shownInAxis, fit, eps, rng)
	case phase4Adversarial:
		return closestToPressure(unused, fit.B+adversarialSEMultiplier*fit.SEB)
	case phase5Variants:
		if it := variantPick(unused, shownInAxis); it != nil {
			return it
		}
		return exploitExplorePick(unused, shownInAxis, fit, eps, rng)
	default:
		return nil
	}
}

// anchorPick implements Phase 1: lowest pressure first, then highest,
// then closest to 0.5.
func anchorPick(unused []model.Item, alreadyShown int) *model.Item {
	switch alreadyShown {
	case 0:
		return extremum(unused, false)
	case 1:
		return extremum(unused, true)
	default:
		return closestToPressure(unused, 0.5)
	}
}

func extremum(items []model.Item, highest bool) *model.Item {
	if len(items) == 0 {
		return nil
	}
	best := items[0]
	for _, it := range items[1:] {
		if highest && it.PressureLevel > best.PressureLevel {
			best = it
		}
		if !highest && it.PressureLevel < best.PressureLevel {
			best = it
		}
	}
	return &best
}

func closestToPressure(items []model.Item, target float64) *model.Item {
	if len(items) == 0 {
		return nil
	}
	best := items[0]
	bestDist := absf(best.PressureLevel - target)
	for _, it := range items[1:] {
		d := absf(it.PressureLevel - target)
		if d < bestDist {
			best, bestDist = it, d
		}
	}
	return &best
}

// exploitExplorePick implements Phase 2: with probability 1-ε pick the
// item closest to the current threshold estimate; with probability ε
// pick from the least-sampled pressure quartile, where "sampled" counts
// items already shown on this axis (not items remaining unused).
func exploitExplorePick(unused []model.Item, shownInAxis []ShownItem, fit AxisFit, eps float64, rng *rand.Rand) *model.Item {
	if len(unused) == 0 {
		return nil
	}
	if rng.Float64() >= eps {
		b := fit.B
		if b == 0 {
			b = 0.5
		}
		return closestToPressure(unused, b)
	}
	unusedByQuartile := make([][]model.Item, 4)
	for _, it := range unused {
		q := quartileOf(it.PressureLevel)
		unusedByQuartile[q] = append(unusedByQuartile[q], it)
	}
	var shownCounts [4]int
	for _, s := range shownInAxis {
		shownCounts[quartileOf(s.Pressure)]++
	}
	best := -1
	for q, items := range unusedByQuartile {
		if len(items) == 0 {
			continue
		}
		if best == -1 || shownCounts[q] < shownCounts[best] {
			best = q
		}
	}
	if best == -1 {
		return &unused[0]
	}
	return &unusedByQuartile[best][0]
}

func quartileOf(p float64) int {
	switch {
	case p < 0.25:
		return 0
	case p < 0.5:
		return 1
	case p < 0.75:
		return 2
	default:
		return 3
	}
}

// consistencyTrapPick implements Phase 3: an unused item whose
// consistency group was started at least minConsistencyTrapGap global
// positions earlier.
func consistencyTrapPick(unused []model.Item, shownInAxis []ShownItem) *model.Item {
	if len(shownInAxis) == 0 {
		return nil
	}
	latestPosition := shownInAxis[len(shownInAxis)-1].Position
	eligibleGroups := make(map[string]bool)
	for _, s := range shownInAxis {
		if s.ConsistencyGroupID != "" && latestPosition-s.Position >= minConsistencyTrapGap {
			eligibleGroups[s.ConsistencyGroupID] = true
		}
	}
	if len(eligibleGroups) == 0 {
		return nil
	}
	candidates := make([]model.Item, 0)
	for _, it := range unused {
		if it.ConsistencyGroupID != nil && eligibleGroups[*it.ConsistencyGroupID] {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return &candidates[0]
}

// variantPick implements Phase 5: prefer an unused framing or pressure
// variant sharing a consistency group with an earlier item whose
// permissibility landed in the ambiguous [40,60] band.
func variantPick(unused []model.Item, shownInAxis []ShownItem) *model.Item {
	boundaryGroups := make(map[string]bool)
	for _, s := range shownInAxis {
		if s.ConsistencyGroupID != "" && s.Permissibility >= boundaryPermissibilityLo && s.Permissibility <= boundaryPermissibilityHi {
			boundaryGroups[s.ConsistencyGroupID] = true
		}
	}
	var candidates []model.Item
	for _, it := range unused {
		if it.DilemmaType != model.DilemmaTypeFraming && it.DilemmaType != model.DilemmaTypePressure {
			continue
		}
		if it.ConsistencyGroupID != nil && boundaryGroups[*it.ConsistencyGroupID] {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		for _, it := range unused {
			if it.DilemmaType == model.DilemmaTypeFraming || it.DilemmaType == model.DilemmaTypePressure {
				candidates = append(candidates, it)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return closestToPressure(candidates, 0.5)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
