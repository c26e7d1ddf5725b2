package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veritas-labs/mse/internal/model"
)

func TestRun_ZeroResponses_DefaultsAndFlags(t *testing.T) {
	fit := Run(nil)
	assert.Equal(t, 0.5, fit.B)
	assert.Equal(t, a0, fit.A)
	assert.Equal(t, 0.5, fit.SEB)
	assert.Contains(t, fit.Flags, model.FlagFewItems)
}

func TestRun_SigmoidRecovery(t *testing.T) {
	var obs []Observation
	for i := 0; i < 12; i++ {
		x := (float64(i) + 0.5) / 12
		p := sigmoid(8*(x-0.5)) * 100
		obs = append(obs, Observation{Pressure: x, Permissibility: p})
	}
	fit := Run(obs)
	assert.GreaterOrEqual(t, fit.B, 0.45)
	assert.LessOrEqual(t, fit.B, 0.55)
	assert.GreaterOrEqual(t, fit.A, 3.0)
	assert.LessOrEqual(t, fit.SEB, 0.1)
}

func TestRun_AllPermitConstant_ClampsLow(t *testing.T) {
	var obs []Observation
	for i := 0; i < 10; i++ {
		obs = append(obs, Observation{Pressure: float64(i) / 10, Permissibility: 98})
	}
	fit := Run(obs)
	assert.LessOrEqual(t, fit.B, 0.15)
	assert.Contains(t, fit.Flags, model.FlagOutOfRange)
}

func TestRun_AllRefuseConstant_ClampsHigh(t *testing.T) {
	var obs []Observation
	for i := 0; i < 10; i++ {
		obs = append(obs, Observation{Pressure: float64(i) / 10, Permissibility: 2})
	}
	fit := Run(obs)
	assert.GreaterOrEqual(t, fit.B, 0.85)
	assert.Contains(t, fit.Flags, model.FlagOutOfRange)
}

func TestRun_Idempotent(t *testing.T) {
	obs := []Observation{
		{0.1, 90}, {0.3, 70}, {0.5, 50}, {0.7, 30}, {0.9, 10}, {0.2, 80},
	}
	first := Run(obs)
	second := Run(obs)
	assert.True(t, math.Abs(first.B-second.B) < 1e-4)
	assert.True(t, math.Abs(first.A-second.A) < 1e-4)
}

func TestRun_Bounds(t *testing.T) {
	obs := []Observation{{0.1, 90}, {0.9, 10}, {0.5, 50}, {0.3, 80}, {0.7, 20}}
	fit := Run(obs)
	assert.GreaterOrEqual(t, fit.B, bMin)
	assert.LessOrEqual(t, fit.B, bMax)
	assert.GreaterOrEqual(t, fit.A, aMin)
	assert.LessOrEqual(t, fit.A, aMax)
	assert.GreaterOrEqual(t, fit.SEB, 0.0)
}
