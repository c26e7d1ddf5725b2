package gaming

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/mse/internal/model"
)

func TestDetect_UniformRoboticLog_Flagged(t *testing.T) {
	var responses []ResponseRecord
	for i := 0; i < 10; i++ {
		responses = append(responses, ResponseRecord{
			AxisID:         "care",
			ResponseTimeMs: 1000,
			Rationale:      "I choose this option.",
			Permissibility: 50,
			Pressure:       float64(i) / 10,
			ForcedChoice:   model.ForcedChoiceA,
		})
	}
	result := Detect(responses)
	assert.Greater(t, result.ResponseTimeUniformity, 0.5)
	assert.Greater(t, result.RationaleDiversity, 0.3)
	assert.Greater(t, result.Score, 0.6)
	assert.True(t, result.Flagged)
}

func TestDetect_VariedLog_NotFlagged(t *testing.T) {
	rationales := []string{
		"This choice respects the consent of everyone involved in the scenario.",
		"Given the severity here I weigh long-term consequences heavily.",
		"The relationship between the parties changes my reading of duty.",
		"Reversibility matters a great deal in this particular case.",
		"I lean toward the option that reduces harm to bystanders.",
		"Legality alone does not settle this dilemma for me.",
		"The number of people affected pushes me toward caution.",
		"Immediate certainty outweighs long-run speculation here.",
		"Virtue considerations dominate my reasoning in this instance.",
		"A care-based framing changes which option feels right.",
	}
	var responses []ResponseRecord
	for i, rationale := range rationales {
		responses = append(responses, ResponseRecord{
			AxisID:         "care",
			ResponseTimeMs: int64(3000 + i*1700),
			Rationale:      rationale,
			Permissibility: float64(10 + i*8),
			Pressure:       float64(i) / float64(len(rationales)-1),
			ForcedChoice:   model.ForcedChoiceA,
		})
	}
	result := Detect(responses)
	assert.False(t, result.Flagged)
}

func TestDetect_ConsistencyViolation(t *testing.T) {
	responses := []ResponseRecord{
		{ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceA, Permissibility: 40},
		{ConsistencyGroupID: "g1", ForcedChoice: model.ForcedChoiceB, Permissibility: 60},
	}
	result := Detect(responses)
	assert.Equal(t, 1.0, result.ConsistencyViolationRate)
}

func TestDetect_EmptyLog(t *testing.T) {
	result := Detect(nil)
	assert.False(t, result.Flagged)
	assert.Equal(t, 0.0, result.Score)
}
