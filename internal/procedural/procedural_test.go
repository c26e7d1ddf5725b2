package procedural

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/mse/internal/model"
)

func TestCompute_EmptyLog(t *testing.T) {
	result := Compute(nil, 270)
	assert.Equal(t, 0.0, result.MedianResponseTimeMs)
	assert.Equal(t, 0.0, result.ItemCompletionRate)
}

func TestCompute_MedianAndCompletionRate(t *testing.T) {
	responses := []ResponseRecord{
		{ResponseTimeMs: 1000, Confidence: 80, RationaleLength: 40, Principles: []string{"care"}},
		{ResponseTimeMs: 3000, Confidence: 60, RationaleLength: 20, Principles: []string{"care", "virtue"}},
		{ResponseTimeMs: 2000, Confidence: 70, RationaleLength: 30, Principles: []string{"virtue"}},
	}
	result := Compute(responses, 6)
	assert.Equal(t, 2000.0, result.MedianResponseTimeMs)
	assert.InDelta(t, 0.5, result.ItemCompletionRate, 1e-9)
	assert.InDelta(t, 70.0, result.MeanConfidence, 1e-9)
}

func TestCompute_ForcedChoiceStability(t *testing.T) {
	responses := []ResponseRecord{
		{ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceA},
		{ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceA},
		{ConsistencyGroupID: "g2", ForcedChoice: model.ForcedChoiceA},
		{ConsistencyGroupID: "g2", ForcedChoice: model.ForcedChoiceB},
	}
	result := Compute(responses, 4)
	assert.InDelta(t, 0.5, result.ForcedChoiceStability, 1e-9)
}
