// Package estimator fits the per-axis Regularized Logistic Threshold
// Model (RLTM): a penalized two-parameter logistic regression relating a
// dilemma's pressure level to the permit probability it elicits. It
// never panics on degenerate input; callers always get a usable Fit.
package estimator

import (
	"math"
	"sort"

	"github.com/veritas-labs/mse/internal/model"
)

const (
	a0        = 5.0  // prior center for the rigidity parameter
	lambdaA   = 0.5  // regularization weight toward a0
	lambdaBLo = 0.3  // used when the response variance is already low
	lambdaBHi = 1.5  // used when responses are spread out, to discourage drift
	bMin, bMax = 0.05, 0.95
	aMin, aMax = 0.5, 10.0
	maxIterations = 100
	convergeEps   = 1e-4
	coldStartCutoff = 5 // below this, use the quick-logit approximation
)

// Observation is one (pressure, permissibility) pair contributed by a
// single Response on an axis.
type Observation struct {
	Pressure       float64
	Permissibility float64 // 0-100
}

// Fit is the result of fitting an axis's observations: a threshold b, a
// rigidity a, its standard error, and any flags raised along the way.
type Fit struct {
	B      float64
	A      float64
	SEB    float64
	N      int
	Flags  []model.ResponseFlag
}

func sigmoid(z float64) float64 {
	if z > 20 {
		z = 20
	} else if z < -20 {
		z = -20
	}
	return 1 / (1 + math.Exp(-z))
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

// Run fits (b,a,SE_b) for the given axis observations. It never panics on
// degenerate input: zero observations produce the default Fit (b=0.5,
// a=5, SE_b=0.5) flagged few_items; zero variance or a single response go
// through the normal cold-start or optimizer path and return a finite,
// clamped Fit.
func Run(obs []Observation) Fit {
	n := len(obs)
	if n == 0 {
		return Fit{B: 0.5, A: a0, SEB: 0.5, N: 0, Flags: []model.ResponseFlag{model.FlagFewItems}}
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for i, o := range obs {
		x[i] = o.Pressure
		y[i] = clip(o.Permissibility/100, 0.02, 0.98)
	}

	var b, a float64
	var diverged bool
	if n < coldStartCutoff {
		b, a = quickLogit(x, y)
	} else {
		b, a, diverged = gradientDescent(x, y)
		if diverged {
			b, a = quickLogit(x, y)
		}
	}

	seb := standardError(x, y, a, b, n)

	var flags []model.ResponseFlag
	if n < coldStartCutoff {
		flags = append(flags, model.FlagFewItems)
	}
	if diverged {
		flags = append(flags, model.FlagHighUncertainty)
	}
	if b < 0.1 || b > 0.9 {
		flags = append(flags, model.FlagOutOfRange)
	}
	if seb > 0.15 {
		flags = append(flags, model.FlagHighUncertainty)
	}
	if nonMonotonic(x, y) {
		flags = append(flags, model.FlagNonMonotonic)
	}

	return Fit{B: b, A: a, SEB: seb, N: n, Flags: dedupFlags(flags)}
}

// quickLogit regresses zᵢ = ln(yᵢ/(1-yᵢ)) on xᵢ by ordinary least squares
// and derives b = -α/β, deferring a to its prior a0. Used for cold-start
// axes (n < 5) and as the fallback when the full optimizer diverges.
func quickLogit(x, y []float64) (b, a float64) {
	n := float64(len(x))
	if n == 0 {
		return 0.5, a0
	}
	z := make([]float64, len(y))
	for i, yi := range y {
		z[i] = math.Log(yi / (1 - yi))
	}
	var sumX, sumZ, sumXZ, sumXX float64
	for i := range x {
		sumX += x[i]
		sumZ += z[i]
		sumXZ += x[i] * z[i]
		sumXX += x[i] * x[i]
	}
	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-9 {
		return 0.5, a0
	}
	beta := (n*sumXZ - sumX*sumZ) / denom
	alpha := (sumZ - beta*sumX) / n
	if math.Abs(beta) < 1e-9 {
		return 0.5, a0
	}
	return clip(-alpha/beta, 0.1, 0.9), a0
}

// gradientDescent fits (a,b) by minimizing the penalized BCE loss
// described in the RLTM contract. It reports divergence (a non-finite
// result) rather than panicking.
func gradientDescent(x, y []float64) (b, a float64, diverged bool) {
	n := float64(len(x))
	lambdaB := lambdaBHi
	if variance(y) < 0.05 {
		lambdaB = lambdaBLo
	}

	b, a = 0.5, a0
	for k := 0; k < maxIterations; k++ {
		lr := 0.05 / (1 + 0.05*float64(k))

		var sumDB, sumDA float64
		for i := range x {
			p := sigmoid(clip(a*(x[i]-b), -20, 20))
			sumDB += (p - y[i]) * (-a)
			sumDA += (p - y[i]) * (x[i] - b)
		}
		db := (2/n)*sumDB + 2*lambdaB*(b-0.5)
		da := (2/n)*sumDA + 2*lambdaA*(a-a0)

		newB := clip(b-lr*db, bMin, bMax)
		newA := clip(a-lr*da, aMin, aMax)
		deltaB := newB - b
		deltaA := newA - a
		b, a = newB, newA

		if math.IsNaN(b) || math.IsNaN(a) || math.IsInf(b, 0) || math.IsInf(a, 0) {
			return 0, 0, true
		}
		if math.Abs(deltaB) < convergeEps && math.Abs(deltaA) < convergeEps {
			break
		}
	}
	return b, a, false
}

// standardError implements the Fisher-information SE with a
// misfit-scaling factor: continuous permissibility targets need not sit
// exactly on the logistic CDF, so the residual MSE absorbs that misfit,
// sandwich-estimator style.
func standardError(x, y []float64, a, b float64, n int) float64 {
	var fisherInfo, residSq float64
	for i := range x {
		p := sigmoid(clip(a*(x[i]-b), -20, 20))
		fisherInfo += a * a * p * (1 - p)
		residSq += (y[i] - p) * (y[i] - p)
	}
	denom := n - 2
	if denom < 1 {
		denom = 1
	}
	mseResid := residSq / float64(denom)
	if fisherInfo < 1e-9 {
		return 0.5
	}
	return math.Sqrt(mseResid) / math.Sqrt(fisherInfo)
}

// nonMonotonic reports significant reversals in y as x increases: items
// sorted by pressure, deltas whose magnitude exceeds 0.2 counted, and a
// flag raised if those deltas change sign more than once.
func nonMonotonic(x, y []float64) bool {
	n := len(x)
	if n < 3 {
		return false
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return x[idx[i]] < x[idx[j]] })

	var signs []int
	for i := 1; i < n; i++ {
		d := y[idx[i]] - y[idx[i-1]]
		if math.Abs(d) > 0.2 {
			if d > 0 {
				signs = append(signs, 1)
			} else {
				signs = append(signs, -1)
			}
		}
	}
	changes := 0
	for i := 1; i < len(signs); i++ {
		if signs[i] != signs[i-1] {
			changes++
		}
	}
	return changes > 1
}

func variance(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var sumSq float64
	for _, x := range v {
		sumSq += (x - mean) * (x - mean)
	}
	return sumSq / float64(len(v))
}

func dedupFlags(flags []model.ResponseFlag) []model.ResponseFlag {
	seen := make(map[model.ResponseFlag]bool, len(flags))
	out := make([]model.ResponseFlag, 0, len(flags))
	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
