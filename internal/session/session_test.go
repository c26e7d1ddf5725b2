package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/mse/internal/model"
)

func TestAxisStopped_HardCap(t *testing.T) {
	score := model.AxisScore{NItems: maxItemsPerAxis, SEB: 1.0}
	assert.True(t, axisStopped(score, false))
}

func TestAxisStopped_BelowMinItems(t *testing.T) {
	score := model.AxisScore{NItems: minItemsPerAxis - 1, SEB: 0.01}
	assert.False(t, axisStopped(score, true))
}

func TestAxisStopped_SEBTooHigh(t *testing.T) {
	score := model.AxisScore{NItems: minItemsPerAxis + 1, SEB: maxSEB + 0.01}
	assert.False(t, axisStopped(score, true))
}

func TestAxisStopped_GroupsIncomplete(t *testing.T) {
	score := model.AxisScore{NItems: minItemsPerAxis + 1, SEB: maxSEB - 0.01}
	assert.False(t, axisStopped(score, false))
}

func TestAxisStopped_AllCriteriaMet(t *testing.T) {
	score := model.AxisScore{NItems: minItemsPerAxis + 1, SEB: maxSEB}
	assert.True(t, axisStopped(score, true))
}

func TestAxisFitsFromScores(t *testing.T) {
	scores := map[string]model.AxisScore{
		"AXIS_A": {B: 0.4, SEB: 0.05, NItems: 9},
		"AXIS_B": {B: -0.2, SEB: 0.08, NItems: 12},
	}

	fits := axisFitsFromScores(scores)

	assert.Len(t, fits, 2)
	assert.Equal(t, 0.4, fits["AXIS_A"].B)
	assert.Equal(t, 0.05, fits["AXIS_A"].SEB)
	assert.Equal(t, -0.2, fits["AXIS_B"].B)
}
