package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_KFactorDecay(t *testing.T) {
	mr := 1000.0
	uncertainty := 350.0
	var firstDelta, fiftiethDelta float64
	for n := 0; n < 51; n++ {
		newMR, newUncertainty := Update(mr, uncertainty, n, 1000, 4)
		delta := newMR - mr
		if n == 0 {
			firstDelta = delta
		}
		if n == 50 {
			fiftiethDelta = delta
		}
		mr, uncertainty = newMR, newUncertainty
	}
	require.Greater(t, firstDelta, 0.0)
	assert.Less(t, fiftiethDelta, firstDelta)
}

func TestUpdate_MonotoneRiseWithMaxCategory(t *testing.T) {
	mr := 1000.0
	uncertainty := 350.0
	prev := mr
	for n := 0; n < 20; n++ {
		newMR, newUncertainty := Update(mr, uncertainty, n, 1000, 4)
		assert.GreaterOrEqual(t, newMR, prev)
		prev = newMR
		mr, uncertainty = newMR, newUncertainty
	}
}

func TestPeak_Monotone(t *testing.T) {
	peak := 1000.0
	peak = Peak(peak, 1050)
	assert.Equal(t, 1050.0, peak)
	peak = Peak(peak, 990)
	assert.Equal(t, 1050.0, peak)
}

func TestItemDifficulty_MonotoneInPressure(t *testing.T) {
	low := ItemDifficulty(0.1, "base", 0)
	high := ItemDifficulty(0.9, "base", 0)
	assert.Greater(t, high, low)
}
