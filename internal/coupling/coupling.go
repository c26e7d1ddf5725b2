// Package coupling computes the cross-axis relationship structure of a
// single run: a shrinkage-adjusted Spearman correlation matrix with
// Benjamini-Hochberg significance, eigenvector-centrality hub scores,
// bootstrap confidence intervals, and split-half reliability.
package coupling

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veritas-labs/mse/internal/model"
)

const (
	minResponsesPerAxis = 3
	fdrQ                = 0.10
	hubMaxIterations    = 100
	hubConvergeEps      = 1e-8
	defaultBootstrapN   = 1000
	defaultBootstrapBudget = 10 * time.Second
	bootstrapConcurrency   = 8
)

// Input is the per-axis permissibility series for one run, in
// submission order.
type Input struct {
	AxisSeries         map[string][]float64
	BootstrapResamples int
	BootstrapBudget    time.Duration
	Seed               int64
}

// Analyze runs the full coupling pipeline. The bootstrap stage honors
// ctx and in.BootstrapBudget: on expiry it returns partial results with
// a nil MedianCIWidth rather than blocking.
func Analyze(ctx context.Context, in Input) model.CouplingResult {
	axisCodes := make([]string, 0, len(in.AxisSeries))
	for code, series := range in.AxisSeries {
		if len(series) >= minResponsesPerAxis {
			axisCodes = append(axisCodes, code)
		}
	}
	sort.Strings(axisCodes)

	if len(axisCodes) < 3 {
		return model.CouplingResult{
			AxisCodes: axisCodes,
			Warning:   "fewer than 3 axes with sufficient responses",
		}
	}

	m := len(in.AxisSeries[axisCodes[0]])
	for _, code := range axisCodes {
		if l := len(in.AxisSeries[code]); l < m {
			m = l
		}
	}

	truncated := make(map[string][]float64, len(axisCodes))
	for _, code := range axisCodes {
		truncated[code] = in.AxisSeries[code][:m]
	}

	raw := rawSpearmanMatrix(axisCodes, truncated, m)
	lambda := shrinkageLambda(m)
	shrunk := applyShrinkage(raw, lambda)
	pValues := pValueMatrix(raw, m)
	significant := benjaminiHochberg(pValues)
	hubs := hubScores(axisCodes, shrunk)

	resamples := in.BootstrapResamples
	if resamples == 0 {
		resamples = defaultBootstrapN
	}
	budget := in.BootstrapBudget
	if budget == 0 {
		budget = defaultBootstrapBudget
	}
	medianWidth := bootstrapCIWidth(ctx, axisCodes, truncated, m, resamples, budget, in.Seed)
	reliability := splitHalfReliability(axisCodes, truncated, m)

	strongest, weakest := topPairs(axisCodes, raw)
	firstPC := firstPrincipalComponentVarianceExplained(shrunk)

	return model.CouplingResult{
		AxisCodes:                axisCodes,
		Matrix:                   shrunk,
		PValues:                  pValues,
		Significant:              significant,
		HubScores:                hubs,
		MedianCIWidth:            medianWidth,
		Reliability:              reliability,
		TopStrongest:             strongest,
		TopWeakest:               weakest,
		VarianceExplainedFirstPC: &firstPC,
	}
}

// firstPrincipalComponentVarianceExplained estimates the fraction of
// total variance carried by the dominant eigenvalue of a correlation
// matrix via power iteration plus a Rayleigh quotient. The matrix's
// trace equals n (unit diagonal), so the top eigenvalue divided by n is
// the variance-explained ratio the Sophistication Index's Integration
// dimension consumes.
func firstPrincipalComponentVarianceExplained(matrix [][]float64) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}

	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	for iter := 0; iter < hubMaxIterations; iter++ {
		next := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				next[i] += matrix[i][j] * v[j]
			}
		}
		norm := 0.0
		for _, x := range next {
			norm += x * x
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			break
		}
		var delta float64
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - v[i])
		}
		v = next
		if delta < hubConvergeEps {
			break
		}
	}

	mv := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			mv[i] += matrix[i][j] * v[j]
		}
	}
	var numerator, denominator float64
	for i := range v {
		numerator += v[i] * mv[i]
		denominator += v[i] * v[i]
	}
	if denominator < 1e-12 {
		return 0
	}
	eigenvalue := numerator / denominator
	return clip(eigenvalue/float64(n), 0, 1)
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

func rank(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j + 1
	}
	return ranks
}

func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)
	var num, denomX, denomY float64
	for i := range x {
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

func spearman(x, y []float64) float64 {
	return pearson(rank(x), rank(y))
}

func rawSpearmanMatrix(axisCodes []string, series map[string][]float64, m int) [][]float64 {
	n := len(axisCodes)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho := spearman(series[axisCodes[i]], series[axisCodes[j]])
			matrix[i][j] = rho
			matrix[j][i] = rho
		}
	}
	return matrix
}

func shrinkageLambda(m int) float64 {
	if m <= 3 {
		return 0
	}
	return float64(m-3) / float64(m+10)
}

func applyShrinkage(raw [][]float64, lambda float64) [][]float64 {
	n := len(raw)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			if i == j {
				out[i][j] = 1
				continue
			}
			out[i][j] = lambda * raw[i][j]
		}
	}
	return out
}

func pValueMatrix(raw [][]float64, m int) [][]float64 {
	n := len(raw)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			p := twoTailedP(raw[i][j], m)
			out[i][j] = p
			out[j][i] = p
		}
	}
	return out
}

// twoTailedP converts a Spearman rho to a two-tailed p-value via the
// usual t-approximation, evaluated with the regularized incomplete
// beta function.
func twoTailedP(rho float64, m int) float64 {
	if m <= 2 {
		return 1
	}
	if rho >= 1 {
		return 0
	}
	if rho <= -1 {
		return 0
	}
	df := float64(m - 2)
	t := rho * math.Sqrt(df/(1-rho*rho))
	x := df / (df + t*t)
	return regularizedIncompleteBeta(x, df/2, 0.5)
}

type pairKey struct{ i, j int }

func benjaminiHochberg(pValues [][]float64) [][]bool {
	n := len(pValues)
	significant := make([][]bool, n)
	for i := range significant {
		significant[i] = make([]bool, n)
		significant[i][i] = true
	}
	var pairs []pairKey
	var ps []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pairKey{i, j})
			ps = append(ps, pValues[i][j])
		}
	}
	M := len(pairs)
	if M == 0 {
		return significant
	}
	order := make([]int, M)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ps[order[a]] < ps[order[b]] })

	k := 0
	for rank := M; rank >= 1; rank-- {
		idx := order[rank-1]
		if ps[idx] <= fdrQ*float64(rank)/float64(M) {
			k = rank
			break
		}
	}
	for rank := 1; rank <= k; rank++ {
		idx := order[rank-1]
		p := pairs[idx]
		significant[p.i][p.j] = true
		significant[p.j][p.i] = true
	}
	return significant
}

func hubScores(axisCodes []string, matrix [][]float64) map[string]float64 {
	n := len(matrix)
	abs := make([][]float64, n)
	for i := range abs {
		abs[i] = make([]float64, n)
		for j := range abs[i] {
			if i == j {
				continue
			}
			abs[i][j] = math.Abs(matrix[i][j])
		}
	}

	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / math.Sqrt(float64(n))
	}
	for iter := 0; iter < hubMaxIterations; iter++ {
		next := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				next[i] += abs[i][j] * v[j]
			}
		}
		norm := 0.0
		for _, x := range next {
			norm += x * x
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			break
		}
		var delta float64
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - v[i])
		}
		v = next
		if delta < hubConvergeEps {
			break
		}
	}

	var sum float64
	for i := range v {
		v[i] = math.Abs(v[i])
		sum += v[i]
	}
	out := make(map[string]float64, n)
	if sum < 1e-12 {
		for i, code := range axisCodes {
			out[code] = 1.0 / float64(n)
			_ = i
		}
		return out
	}
	for i, code := range axisCodes {
		out[code] = v[i] / sum
	}
	return out
}

// bootstrapCIWidth resamples each axis with replacement B times,
// recomputing the raw Spearman matrix on each resample, and reports the
// median 95% CI width across all off-diagonal pairs. It is cancellable
// and honors budget; on expiry it returns nil rather than blocking the
// caller indefinitely.
func bootstrapCIWidth(ctx context.Context, axisCodes []string, series map[string][]float64, m, resamples int, budget time.Duration, seed int64) *float64 {
	n := len(axisCodes)
	if n < 2 || m < 3 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	numPairs := n * (n - 1) / 2
	widths := make([][]float64, numPairs)
	for i := range widths {
		widths[i] = make([]float64, 0, resamples)
	}
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bootstrapConcurrency)

	for b := 0; b < resamples; b++ {
		b := b
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(b)))
			resampled := make(map[string][]float64, n)
			for _, code := range axisCodes {
				src := series[code]
				draw := make([]float64, m)
				for i := 0; i < m; i++ {
					draw[i] = src[rng.IntN(m)]
				}
				resampled[code] = draw
			}
			matrix := rawSpearmanMatrix(axisCodes, resampled, m)
			mu.Lock()
			idx := 0
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					widths[idx] = append(widths[idx], matrix[i][j])
					idx++
				}
			}
			completed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // deadline/cancellation is not an error for the caller
	if completed < resamples {
		return nil
	}

	var allWidths []float64
	for _, samples := range widths {
		if len(samples) < 2 {
			continue
		}
		sort.Float64s(samples)
		lo := percentile(samples, 2.5)
		hi := percentile(samples, 97.5)
		allWidths = append(allWidths, hi-lo)
	}
	if len(allWidths) == 0 {
		return nil
	}
	sort.Float64s(allWidths)
	median := percentile(allWidths, 50)
	return &median
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func splitHalfReliability(axisCodes []string, series map[string][]float64, m int) *float64 {
	if m < 4 {
		return nil
	}
	odd := make(map[string][]float64, len(axisCodes))
	even := make(map[string][]float64, len(axisCodes))
	for _, code := range axisCodes {
		src := series[code]
		var o, e []float64
		for i, v := range src {
			if i%2 == 0 {
				e = append(e, v)
			} else {
				o = append(o, v)
			}
		}
		if len(o) < 2 || len(e) < 2 {
			return nil
		}
		odd[code] = o
		even[code] = e
	}
	mOdd := minLen(odd, axisCodes)
	mEven := minLen(even, axisCodes)
	for _, code := range axisCodes {
		odd[code] = odd[code][:mOdd]
		even[code] = even[code][:mEven]
	}
	oddMatrix := rawSpearmanMatrix(axisCodes, odd, mOdd)
	evenMatrix := rawSpearmanMatrix(axisCodes, even, mEven)

	var a, b []float64
	n := len(axisCodes)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a = append(a, oddMatrix[i][j])
			b = append(b, evenMatrix[i][j])
		}
	}
	if len(a) == 0 {
		return nil
	}
	r := pearson(a, b)
	return &r
}

func minLen(m map[string][]float64, codes []string) int {
	min := -1
	for _, c := range codes {
		l := len(m[c])
		if min == -1 || l < min {
			min = l
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func topPairs(axisCodes []string, raw [][]float64) (strongest, weakest []model.CouplingPair) {
	n := len(axisCodes)
	var all []model.CouplingPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			all = append(all, model.CouplingPair{AxisA: axisCodes[i], AxisB: axisCodes[j], Rho: raw[i][j]})
		}
	}
	sort.Slice(all, func(i, j int) bool { return math.Abs(all[i].Rho) > math.Abs(all[j].Rho) })
	top := 5
	if len(all) < top {
		top = len(all)
	}
	strongest = append(strongest, all[:top]...)
	sort.Slice(all, func(i, j int) bool { return math.Abs(all[i].Rho) < math.Abs(all[j].Rho) })
	weakest = append(weakest, all[:top]...)
	return strongest, weakest
}
