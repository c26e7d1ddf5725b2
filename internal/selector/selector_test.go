package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/model"
)

func bankForAxis(axis string, n int) []model.Item {
	items := make([]model.Item, n)
	for i := 0; i < n; i++ {
		items[i] = model.Item{
			ID:            fmt.Sprintf("%s-item-%d", axis, i),
			AxisID:        axis,
			PressureLevel: float64(i) / float64(n-1),
			DilemmaType:   model.DilemmaTypeBase,
		}
	}
	return items
}

func TestNext_AnchorPhaseOrdering(t *testing.T) {
	pool := bankForAxis("care", 10)
	in := Input{
		AxisIDs: []string{"care"},
		Pools:   map[string][]model.Item{"care": pool},
		Seed:    42,
	}

	first, axis, done := Next(in)
	require.False(t, done)
	require.Equal(t, "care", axis)
	assert.Less(t, first.PressureLevel, 0.3)

	in.Shown = append(in.Shown, ShownItem{ItemID: first.ID, AxisID: "care", Position: 0, Pressure: first.PressureLevel})
	second, _, done := Next(in)
	require.False(t, done)
	assert.Greater(t, second.PressureLevel, 0.7)

	in.Shown = append(in.Shown, ShownItem{ItemID: second.ID, AxisID: "care", Position: 1, Pressure: second.PressureLevel})
	third, _, done := Next(in)
	require.False(t, done)
	assert.InDelta(t, 0.5, third.PressureLevel, 0.2)
}

func TestNext_NeverRepeatsAndExhausts(t *testing.T) {
	pool := bankForAxis("loyalty", 16)
	in := Input{
		AxisIDs: []string{"loyalty"},
		Pools:   map[string][]model.Item{"loyalty": pool},
		Seed:    7,
	}
	seen := map[string]bool{}
	for pos := 0; ; pos++ {
		item, axis, done := Next(in)
		if done {
			break
		}
		require.False(t, seen[item.ID], "item repeated: %s", item.ID)
		seen[item.ID] = true
		in.Shown = append(in.Shown, ShownItem{ItemID: item.ID, AxisID: axis, Position: pos, Pressure: item.PressureLevel})
	}
	assert.LessOrEqual(t, len(seen), 15)
}

func TestNext_RoundRobinAcrossAxes(t *testing.T) {
	in := Input{
		AxisIDs: []string{"care", "loyalty"},
		Pools: map[string][]model.Item{
			"care":    bankForAxis("care", 10),
			"loyalty": bankForAxis("loyalty", 10),
		},
		Seed: 1,
	}
	item1, axis1, _ := Next(in)
	in.Shown = append(in.Shown, ShownItem{ItemID: item1.ID, AxisID: axis1, Position: 0})
	item2, axis2, _ := Next(in)
	assert.NotEqual(t, axis1, axis2)
	_ = item2
}

func TestNext_Deterministic(t *testing.T) {
	in := Input{
		AxisIDs: []string{"care"},
		Pools:   map[string][]model.Item{"care": bankForAxis("care", 10)},
		Seed:    42,
	}
	item1, _, _ := Next(in)
	item2, _, _ := Next(in)
	assert.Equal(t, item1.ID, item2.ID)
}

func TestNext_EmptyPoolIsDone(t *testing.T) {
	in := Input{AxisIDs: []string{"care"}, Pools: map[string][]model.Item{"care": nil}}
	_, _, done := Next(in)
	assert.True(t, done)
}
