package coupling

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSignificant(sig [][]bool) int {
	n := 0
	for i := 0; i < len(sig); i++ {
		for j := i + 1; j < len(sig[i]); j++ {
			if sig[i][j] {
				n++
			}
		}
	}
	return n
}

func countRawBelow(p [][]float64, threshold float64) int {
	n := 0
	for i := 0; i < len(p); i++ {
		for j := i + 1; j < len(p[i]); j++ {
			if p[i][j] < threshold {
				n++
			}
		}
	}
	return n
}

func TestAnalyze_BHMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	base := make([]float64, 40)
	for i := range base {
		base[i] = rng.Float64() * 100
	}
	series := map[string][]float64{
		"axis0": base,
		"axis1": base,
		"axis2": base,
	}
	for _, name := range []string{"axis3", "axis4"} {
		noise := make([]float64, 40)
		for i := range noise {
			noise[i] = rng.Float64() * 100
		}
		series[name] = noise
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result := Analyze(ctx, Input{AxisSeries: series, BootstrapResamples: 20, BootstrapBudget: time.Second, Seed: 5})

	require.Len(t, result.AxisCodes, 5)
	bhCount := countSignificant(result.Significant)
	rawCount := countRawBelow(result.PValues, 0.10)
	assert.LessOrEqual(t, bhCount, rawCount)
}

func TestAnalyze_DiagonalAndSymmetry(t *testing.T) {
	series := map[string][]float64{
		"a": {10, 20, 30, 40, 50},
		"b": {15, 25, 35, 45, 55},
		"c": {50, 10, 40, 20, 30},
	}
	ctx := context.Background()
	result := Analyze(ctx, Input{AxisSeries: series, BootstrapResamples: 10, BootstrapBudget: 500 * time.Millisecond})
	for i := range result.Matrix {
		assert.InDelta(t, 1.0, result.Matrix[i][i], 1e-9)
		for j := range result.Matrix[i] {
			assert.InDelta(t, result.Matrix[i][j], result.Matrix[j][i], 1e-9)
		}
	}
}

func TestAnalyze_HubScoresSumToOne(t *testing.T) {
	series := map[string][]float64{
		"a": {10, 20, 30, 40, 50, 60},
		"b": {15, 22, 33, 41, 53, 58},
		"c": {55, 18, 44, 22, 31, 49},
		"d": {12, 24, 36, 48, 52, 61},
	}
	ctx := context.Background()
	result := Analyze(ctx, Input{AxisSeries: series, BootstrapResamples: 5, BootstrapBudget: 200 * time.Millisecond})
	var sum float64
	for _, v := range result.HubScores {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestAnalyze_FewerThanThreeAxes(t *testing.T) {
	series := map[string][]float64{
		"a": {1, 2, 3},
		"b": {1, 2, 3},
	}
	ctx := context.Background()
	result := Analyze(ctx, Input{AxisSeries: series})
	assert.Empty(t, result.Matrix)
	assert.NotEmpty(t, result.Warning)
}
