package sophistication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/model"
)

func ptr(v float64) *float64 { return &v }

// TestGeometricComposite_PenalizesLowDimension verifies that a tuple with
// one weak dimension scores strictly lower than a tuple with the same
// arithmetic mean spread evenly, because the geometric mean punishes
// imbalance that the arithmetic mean would hide.
func TestGeometricComposite_PenalizesLowDimension(t *testing.T) {
	weights := []float64{0.35, 0.35, 0.30}

	uneven := []dimWeight{
		{ptr(0.95), weights[0]},
		{ptr(0.95), weights[1]},
		{ptr(0.30), weights[2]},
	}
	even := []dimWeight{
		{ptr(0.73), weights[0]},
		{ptr(0.73), weights[1]},
		{ptr(0.73), weights[2]},
	}

	unevenScore := geometricComposite(uneven)
	evenScore := geometricComposite(even)

	assert.Less(t, unevenScore, evenScore)
}

func TestGeometricComposite_SkipsNonPositiveAndNull(t *testing.T) {
	dims := []dimWeight{
		{nil, 0.5},
		{ptr(0.0), 0.2},
		{ptr(0.8), 0.3},
	}
	score := geometricComposite(dims)
	assert.InDelta(t, 0.8, score, 0.02)
}

func TestGeometricComposite_AllNullIsZero(t *testing.T) {
	dims := []dimWeight{{nil, 0.5}, {nil, 0.5}}
	assert.Equal(t, 0.0, geometricComposite(dims))
}

func TestGeometricComposite_ClippedToUnitRange(t *testing.T) {
	dims := []dimWeight{{ptr(1.0), 1.0}}
	score := geometricComposite(dims)
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestSkipNullMean_IgnoresNilEntries(t *testing.T) {
	values := []dimWeight{
		{ptr(1.0), 1.0},
		{nil, 1.0},
		{ptr(0.0), 1.0},
	}
	result := skipNullMean(values)
	require.NotNil(t, result)
	assert.InDelta(t, 0.5, *result, 1e-9)
}

func TestSkipNullMean_AllNilIsNil(t *testing.T) {
	values := []dimWeight{{nil, 1.0}, {nil, 1.0}}
	assert.Nil(t, skipNullMean(values))
}

func TestLevelFor_Bands(t *testing.T) {
	assert.Equal(t, model.SILevelReactive, levelFor(10))
	assert.Equal(t, model.SILevelDeliberative, levelFor(65))
	assert.Equal(t, model.SILevelIntegrated, levelFor(80))
	assert.Equal(t, model.SILevelReflective, levelFor(88))
	assert.Equal(t, model.SILevelAutonomous, levelFor(95))
}

func TestAdaptabilityDimension_NilWithFewerThanTwoSnapshots(t *testing.T) {
	assert.Nil(t, adaptabilityDimension(nil))
	assert.Nil(t, adaptabilityDimension([]HistoricalPoint{{RunIndex: 1, MeanB: 0.1}}))
}

func TestAdaptabilityDimension_ImprovingProceduralScoreRaisesValue(t *testing.T) {
	history := []HistoricalPoint{
		{RunIndex: 1, MeanB: 0.1, MeanSE: 0.3, ProceduralScore: 0.4},
		{RunIndex: 2, MeanB: 0.2, MeanSE: 0.2, ProceduralScore: 0.5},
		{RunIndex: 3, MeanB: 0.3, MeanSE: 0.1, ProceduralScore: 0.6},
	}
	result := adaptabilityDimension(history)
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, *result, 0.0)
	assert.LessOrEqual(t, *result, 1.0)
}

func TestSelfModelAccuracyDimension_PerfectPredictionIsOne(t *testing.T) {
	preds := []SelfModelPrediction{
		{PredictedB: 0.5, ActualB: 0.5},
		{PredictedB: -0.2, ActualB: -0.2},
	}
	result := selfModelAccuracyDimension(preds)
	require.NotNil(t, result)
	assert.InDelta(t, 1.0, *result, 1e-9)
}

func TestSelfModelAccuracyDimension_NilWhenNoPredictions(t *testing.T) {
	assert.Nil(t, selfModelAccuracyDimension(nil))
}

func TestTraditionSeparation_NilWithFewerThanTwoTraditions(t *testing.T) {
	values := []AxisBValue{
		{AxisCode: "a1", Tradition: "deontology", B: 0.2},
		{AxisCode: "a2", Tradition: "deontology", B: 0.3},
	}
	assert.Nil(t, traditionSeparation(values))
}

func TestTraditionSeparation_SeparatedGroupsScoreHigh(t *testing.T) {
	values := []AxisBValue{
		{AxisCode: "a1", Tradition: "deontology", B: 0.9},
		{AxisCode: "a2", Tradition: "deontology", B: 0.85},
		{AxisCode: "a3", Tradition: "consequentialism", B: -0.9},
		{AxisCode: "a4", Tradition: "consequentialism", B: -0.85},
	}
	result := traditionSeparation(values)
	require.NotNil(t, result)
	assert.Greater(t, *result, 0.5)
}

func TestCompute_ComposesAllDimensions(t *testing.T) {
	in := Input{
		AxisBValues: []AxisBValue{
			{AxisCode: "a1", Tradition: "deontology", B: 0.5},
			{AxisCode: "a2", Tradition: "consequentialism", B: -0.4},
		},
		CoherenceScore:    ptr(0.7),
		VarianceExplained: ptr(0.6),
		Capacity: model.CapacityResult{
			Calibration:                     ptr(0.8),
			InfoSeeking:                     ptr(0.5),
			MoralHumility:                   ptr(0.6),
			ConfidenceDifficultyCorrelation: ptr(0.7),
			Consistency:                     ptr(0.9),
			MoralCoherence:                  ptr(0.8),
			ConsistencyTrapAgreementMean:    ptr(0.85),
		},
		GamingScore: 0.1,
		HistoricalSnapshots: []HistoricalPoint{
			{RunIndex: 1, MeanB: 0.1, MeanSE: 0.3, ProceduralScore: 0.4},
			{RunIndex: 2, MeanB: 0.2, MeanSE: 0.2, ProceduralScore: 0.5},
		},
		SelfModelPredictions: []SelfModelPrediction{
			{PredictedB: 0.5, ActualB: 0.45},
		},
	}

	result := Compute(in)

	require.NotNil(t, result.Integration)
	require.NotNil(t, result.Metacognition)
	require.NotNil(t, result.Stability)
	require.NotNil(t, result.Adaptability)
	require.NotNil(t, result.SelfModelAccuracy)
	assert.GreaterOrEqual(t, result.Composite, 0.0)
	assert.LessOrEqual(t, result.Composite, 1.0)
	assert.NotEmpty(t, result.Level)
}

// TestCompute_EmptyInputRestsOnGenuinenessAlone: with no analyzer data the
// only value present is genuineness = 1 - GamingScore(0) = 1, so Stability
// is 1 and the composite clips to 1.
func TestCompute_EmptyInputRestsOnGenuinenessAlone(t *testing.T) {
	result := Compute(Input{})
	assert.Equal(t, 1.0, result.Composite)
	assert.Equal(t, model.SILevelAutonomous, result.Level)
}
