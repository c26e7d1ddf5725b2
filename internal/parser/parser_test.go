package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/model"
)

func TestParse_ForcedChoiceDefaultedFromChoice(t *testing.T) {
	r, err := Parse(map[string]any{"choice": "c", "permissibility": 50.0, "confidence": 50.0})
	require.NoError(t, err)
	assert.Equal(t, model.ChoiceC, r.Response.Choice)
	assert.Equal(t, model.ForcedChoiceA, r.Response.ForcedChoice)
}

func TestParse_PermissibilityOutOfRange(t *testing.T) {
	_, err := Parse(map[string]any{"choice": "A", "permissibility": 150.0, "confidence": 50.0})
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Len(t, pe.Errors, 1)
	assert.Equal(t, "field_out_of_range", pe.Errors[0].Reason)
}

func TestParse_MissingChoice(t *testing.T) {
	_, err := Parse(map[string]any{"permissibility": 50.0, "confidence": 50.0})
	require.Error(t, err)
}

func TestParse_PrinciplesDedupedLoweredTruncated(t *testing.T) {
	r, err := Parse(map[string]any{
		"choice": "A", "permissibility": 50.0, "confidence": 50.0,
		"principles": []any{"Care", "care", "Deontological", "Virtue", "Pragmatic"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"care", "deontological", "virtue"}, r.Response.Principles)
}

func TestParse_UnknownPrincipleKeptAndWarned(t *testing.T) {
	r, err := Parse(map[string]any{
		"choice": "A", "permissibility": 50.0, "confidence": 50.0,
		"principles": []any{"nihilism"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"nihilism"}, r.Response.Principles)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "principles", r.Warnings[0].Field)
}

func TestParse_RationaleTruncatedWithWarning(t *testing.T) {
	long := ""
	for i := 0; i < 250; i++ {
		long += "x"
	}
	r, err := Parse(map[string]any{
		"choice": "A", "permissibility": 50.0, "confidence": 50.0, "rationale": long,
	})
	require.NoError(t, err)
	assert.Len(t, r.Response.Rationale, 200)
	assert.Equal(t, Warning{"rationale", "truncated_to_200_chars"}, r.Warnings[0])
}

func TestParse_AliasedKeys(t *testing.T) {
	r, err := Parse(map[string]any{
		"choice": "B", "permissibility": 60.0, "confidence": 70.0,
		"responseTimeMs": 1200.0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), r.Response.ResponseTimeMs)
}

func TestParseText_ExtractsChoice(t *testing.T) {
	r, err := ParseText("After thinking it through, I choose option C because of the tradeoffs.")
	require.NoError(t, err)
	assert.Equal(t, model.ChoiceC, r.Response.Choice)
}

func TestParseText_Unrecognized(t *testing.T) {
	_, err := ParseText("I am not sure what to pick here.")
	require.Error(t, err)
	pe := err.(*ParseError)
	assert.Equal(t, "choice_unrecognized", pe.Errors[0].Reason)
}
