package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/model"
)

func TestCompute_EmptyLog(t *testing.T) {
	result := Compute(nil)
	assert.Nil(t, result.Calibration)
	assert.Nil(t, result.MoralHumility)
}

func TestCompute_CalibrationPerfectMatch(t *testing.T) {
	responses := []ResponseRecord{
		{Confidence: 100, GRMCategory: 4},
		{Confidence: 0, GRMCategory: 0},
	}
	result := Compute(responses)
	require.NotNil(t, result.Calibration)
	assert.InDelta(t, 1.0, *result.Calibration, 1e-9)
}

func TestCompute_InfoSeeking(t *testing.T) {
	responses := []ResponseRecord{
		{InfoNeeded: []string{"base rate"}},
		{InfoNeeded: nil},
	}
	result := Compute(responses)
	require.NotNil(t, result.InfoSeeking)
	assert.InDelta(t, 0.5, *result.InfoSeeking, 1e-9)
}

func TestCompute_ConsistencyTrapAgreement(t *testing.T) {
	responses := []ResponseRecord{
		{DilemmaType: model.DilemmaTypeConsistencyTrap, ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceA},
		{DilemmaType: model.DilemmaTypeConsistencyTrap, ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceB},
	}
	result := Compute(responses)
	require.NotNil(t, result.ConsistencyTrapAgreementMean)
	assert.InDelta(t, 0.5, *result.ConsistencyTrapAgreementMean, 1e-9)
}

func TestCompute_MoralHumilityNilWithoutHighPressure(t *testing.T) {
	responses := []ResponseRecord{{Pressure: 0.2, Confidence: 90}}
	result := Compute(responses)
	assert.Nil(t, result.MoralHumility)
}
