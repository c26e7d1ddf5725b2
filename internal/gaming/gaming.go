// Package gaming implements the six-signal ensemble that scores a run's
// response log for signs of automated or formulaic gaming rather than
// genuine deliberation.
package gaming

import (
	"math"
	"strings"

	"github.com/veritas-labs/mse/internal/model"
)

const gamingThreshold = 0.60

const (
	weightTime        = 0.10
	weightDiversity   = 0.15
	weightRegularity  = 0.20
	weightSensitivity = 0.20
	weightFraming     = 0.15
	weightConsistency = 0.20
)

// ResponseRecord is the minimal view of a Response the gaming detector
// needs, in submission order.
type ResponseRecord struct {
	AxisID             string
	ConsistencyGroupID string
	Pressure           float64
	Permissibility     float64
	ResponseTimeMs     int64
	Rationale          string
	ForcedChoice       model.ForcedChoice
}

// Detect runs the full ensemble over a run's response log.
func Detect(responses []ResponseRecord) model.GamingResult {
	timeSig := responseTimeUniformity(responses)
	diversitySig := rationaleDiversity(responses)
	regularitySig := patternRegularity(responses)
	sensitivitySig := parameterSensitivity(responses)
	framingSig := framingSusceptibility(responses)
	consistencySig := consistencyViolationRate(responses)

	score := weightTime*timeSig + weightDiversity*diversitySig + weightRegularity*regularitySig +
		weightSensitivity*sensitivitySig + weightFraming*framingSig + weightConsistency*consistencySig

	return model.GamingResult{
		ResponseTimeUniformity:   timeSig,
		RationaleDiversity:       diversitySig,
		PatternRegularity:        regularitySig,
		ParameterSensitivity:     sensitivitySig,
		FramingSusceptibility:    framingSig,
		ConsistencyViolationRate: consistencySig,
		Score:                    score,
		Flagged:                  score > gamingThreshold,
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// responseTimeUniformity: automated agents tend to answer with
// near-constant cadence, which shows up as a low coefficient of
// variation in response_time_ms.
func responseTimeUniformity(responses []ResponseRecord) float64 {
	if len(responses) < 2 {
		return 0
	}
	times := make([]float64, len(responses))
	for i, r := range responses {
		times[i] = float64(r.ResponseTimeMs)
	}
	mean, std := meanStd(times)
	if mean == 0 {
		return 1
	}
	cv := std / mean
	return clip(1-cv/0.3, 0, 1)
}

// rationaleDiversity scores HIGH when rationales are textually similar
// across the run (low diversity is itself the suspicious signal).
func rationaleDiversity(responses []ResponseRecord) float64 {
	tokenSets := make([]map[string]bool, 0, len(responses))
	for _, r := range responses {
		tokenSets = append(tokenSets, tokenize(r.Rationale))
	}
	if len(tokenSets) < 2 {
		return 0
	}
	var sumDist float64
	var pairs int
	for i := 0; i < len(tokenSets); i++ {
		for j := i + 1; j < len(tokenSets); j++ {
			sumDist += jaccardDistance(tokenSets[i], tokenSets[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	meanDist := sumDist / float64(pairs)
	return clip(1-meanDist/0.5, 0, 1)
}

// patternRegularity flags formulaic permissibility sequences via their
// lag-1 autocorrelation. A constant sequence, whose autocorrelation is
// undefined, is the most formulaic of all and scores 1.
func patternRegularity(responses []ResponseRecord) float64 {
	perm := make([]float64, len(responses))
	for i, r := range responses {
		perm[i] = r.Permissibility
	}
	if len(perm) >= 2 {
		if _, std := meanStd(perm); std == 0 {
			return 1
		}
	}
	acf1 := autocorrelationLag1(perm)
	return clip(math.Abs(acf1)/0.7, 0, 1)
}

// parameterSensitivity is low when an agent ignores the dilemma's
// pressure level; the raw per-axis correlation is inverted into a
// suspicion score.
func parameterSensitivity(responses []ResponseRecord) float64 {
	byAxis := groupByAxis(responses)
	if len(byAxis) == 0 {
		return 0
	}
	var sumAbsRho float64
	var n int
	for _, rs := range byAxis {
		if len(rs) < 2 {
			continue
		}
		pressures := make([]float64, len(rs))
		perms := make([]float64, len(rs))
		for i, r := range rs {
			pressures[i] = r.Pressure
			perms[i] = r.Permissibility
		}
		rho := pearson(pressures, perms)
		sumAbsRho += math.Abs(rho)
		n++
	}
	if n == 0 {
		return 0
	}
	mean := sumAbsRho / float64(n)
	return clip(1-mean, 0, 1)
}

// framingSusceptibility measures how much permissibility flips under
// rewording within a consistency group.
func framingSusceptibility(responses []ResponseRecord) float64 {
	byGroup := groupByConsistencyGroup(responses)
	if len(byGroup) == 0 {
		return 0
	}
	var sum float64
	for _, rs := range byGroup {
		perms := make([]float64, len(rs))
		for i, r := range rs {
			perms[i] = r.Permissibility
		}
		_, std := meanStd(perms)
		sum += (std * std) / 2500
	}
	return clip(sum/float64(len(byGroup)), 0, 1)
}

// consistencyViolationRate directly measures coherence failures: the
// fraction of consistency groups whose forced choice is not constant
// across members.
func consistencyViolationRate(responses []ResponseRecord) float64 {
	byGroup := groupByConsistencyGroup(responses)
	if len(byGroup) == 0 {
		return 0
	}
	var violations int
	for _, rs := range byGroup {
		first := rs[0].ForcedChoice
		for _, r := range rs[1:] {
			if r.ForcedChoice != first {
				violations++
				break
			}
		}
	}
	return float64(violations) / float64(len(byGroup))
}

func groupByAxis(responses []ResponseRecord) map[string][]ResponseRecord {
	out := make(map[string][]ResponseRecord)
	for _, r := range responses {
		out[r.AxisID] = append(out[r.AxisID], r)
	}
	return out
}

func groupByConsistencyGroup(responses []ResponseRecord) map[string][]ResponseRecord {
	out := make(map[string][]ResponseRecord)
	for _, r := range responses {
		if r.ConsistencyGroupID == "" {
			continue
		}
		out[r.ConsistencyGroupID] = append(out[r.ConsistencyGroupID], r)
	}
	return out
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if len(word) > 2 {
			out[word] = true
		}
	}
	return out
}

func jaccardDistance(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	union := make(map[string]bool, len(a)+len(b))
	for k := range a {
		union[k] = true
		if b[k] {
			inter++
		}
	}
	for k := range b {
		union[k] = true
	}
	if len(union) == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(len(union))
}

func meanStd(v []float64) (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var sumSq float64
	for _, x := range v {
		sumSq += (x - mean) * (x - mean)
	}
	std = math.Sqrt(sumSq / float64(len(v)))
	return mean, std
}

func autocorrelationLag1(v []float64) float64 {
	n := len(v)
	if n < 2 {
		return 0
	}
	mean, _ := meanStd(v)
	var num, denom float64
	for i := 0; i < n; i++ {
		denom += (v[i] - mean) * (v[i] - mean)
	}
	for i := 1; i < n; i++ {
		num += (v[i] - mean) * (v[i-1] - mean)
	}
	if denom == 0 {
		return 0
	}
	return num / denom
}

func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	meanX, _ := meanStd(x)
	meanY, _ := meanStd(y)
	var num, denomX, denomY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}
	if denomX == 0 || denomY == 0 {
		return 0
	}
	return num / math.Sqrt(denomX*denomY)
}
