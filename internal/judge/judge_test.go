package judge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicJudge_Cat0_RefusalOrTooShort(t *testing.T) {
	j := NewHeuristicJudge()
	score, err := j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: "i refuse to answer this"})
	require.NoError(t, err)
	assert.Equal(t, 0, score.GRMCategory)

	score, err = j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: "too short"})
	require.NoError(t, err)
	assert.Equal(t, 0, score.GRMCategory)
}

func TestHeuristicJudge_Cat1_ShortNoTradeoff(t *testing.T) {
	j := NewHeuristicJudge()
	score, err := j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{
		Rationale: "This seems like the right choice overall.",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, score.GRMCategory)
}

func TestHeuristicJudge_Cat2_TradeoffMarker(t *testing.T) {
	j := NewHeuristicJudge()
	score, err := j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{
		Rationale: "Saving the larger group seems right, however the smaller group did nothing wrong and that matters a great deal here.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, score.GRMCategory)
}

func TestHeuristicJudge_Cat3_NonObviousOrInfoNeeded(t *testing.T) {
	j := NewHeuristicJudge()
	d := Dilemma{NonObviousFactors: []string{"hidden_conflict_of_interest"}}
	score, err := j.ScoreRationale(context.Background(), d, RationaleInput{
		Rationale: "There is a hidden_conflict_of_interest that changes everything about how I'd weigh this.",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, score.GRMCategory)
	assert.True(t, score.IdentifiesNonObvious)

	score, err = j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{
		Rationale:  "I would need more context before deciding on this one fully.",
		InfoNeeded: []string{"victim relationship"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, score.GRMCategory)
}

func TestHeuristicJudge_Cat4_ParametersAndTraditions(t *testing.T) {
	j := NewHeuristicJudge()
	score, err := j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{
		Rationale: "Weighing the severity, certainty, and legal reversibility here, I lean on both the expected consequence " +
			"and my sense of duty and obligation to the parties involved.",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, score.GRMCategory)
}

func TestHeuristicJudge_MentionsBothPoles(t *testing.T) {
	j := NewHeuristicJudge()
	d := Dilemma{AxisLeftPole: "autonomy", AxisRightPole: "beneficence"}
	score, err := j.ScoreRationale(context.Background(), d, RationaleInput{
		Rationale: "This balances autonomy against beneficence for the patient, however the obligation runs deep.",
	})
	require.NoError(t, err)
	assert.True(t, score.MentionsBothPoles)
}

func TestHeuristicJudge_RecognizesResidue_OnlyWhenRequired(t *testing.T) {
	j := NewHeuristicJudge()
	rationale := RationaleInput{Rationale: "Either choice leaves a moral remainder and this regret feels unavoidable, however I'd still choose to act."}

	score, err := j.ScoreRationale(context.Background(), Dilemma{RequiresResidueRecognition: false}, rationale)
	require.NoError(t, err)
	assert.False(t, score.RecognizesResidue)

	score, err = j.ScoreRationale(context.Background(), Dilemma{RequiresResidueRecognition: true}, rationale)
	require.NoError(t, err)
	assert.True(t, score.RecognizesResidue)
}

func TestHeuristicJudge_NeverErrors(t *testing.T) {
	j := NewHeuristicJudge()
	_, err := j.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: ""})
	assert.NoError(t, err)
}

type erroringJudge struct{ delay time.Duration }

func (e erroringJudge) ScoreRationale(ctx context.Context, d Dilemma, r RationaleInput) (Score, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return Score{}, ctx.Err()
		}
	}
	return Score{}, errors.New("primary judge unavailable")
}

func TestFallback_FallsBackOnPrimaryError(t *testing.T) {
	fb := NewFallback(erroringJudge{})
	score, err := fb.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: "a decent length rationale here"})
	require.NoError(t, err)
	assert.Equal(t, NewHeuristicJudge().mustScore(t, Dilemma{}, RationaleInput{Rationale: "a decent length rationale here"}), score)
}

func TestFallback_FallsBackOnTimeout(t *testing.T) {
	fb := &Fallback{Primary: erroringJudge{delay: 50 * time.Millisecond}, Fallback: NewHeuristicJudge(), Timeout: 5 * time.Millisecond}
	score, err := fb.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: "some rationale of moderate length"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.GRMCategory, 0)
}

func TestFallback_NilPrimary_UsesFallbackDirectly(t *testing.T) {
	fb := NewFallback(nil)
	score, err := fb.ScoreRationale(context.Background(), Dilemma{}, RationaleInput{Rationale: "i refuse to answer this one"})
	require.NoError(t, err)
	assert.Equal(t, 0, score.GRMCategory)
}

// mustScore is a small test helper so the fallback-equivalence assertion
// above reads as "same score the heuristic would have produced."
func (h HeuristicJudge) mustScore(t *testing.T, d Dilemma, r RationaleInput) Score {
	t.Helper()
	s, err := h.ScoreRationale(context.Background(), d, r)
	require.NoError(t, err)
	return s
}
