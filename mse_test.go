package mse

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/mse/internal/judge"
	"github.com/veritas-labs/mse/internal/model"
)

func TestToPublicSnapshot(t *testing.T) {
	internal := model.Snapshot{
		RunID:       "run-1",
		SubjectID:   "agent-1",
		ExamVersion: "v1",
		AxisScores: map[string]model.AxisScore{
			"AXIS_A": {AxisID: "axis-a", B: 0.5, A: 1.2, SEB: 0.03, NItems: 10, Flags: []model.ResponseFlag{model.FlagInconsistent}},
		},
		Gaming:    model.GamingResult{Score: 0.8, Flagged: true},
		SI:        model.SIResult{Composite: 62.5, Level: model.SILevelIntegrated},
		MR:        1105.4,
		IsCurrent: true,
		CreatedAt: 1700000000000,
	}

	pub := toPublicSnapshot(internal)

	assert.Equal(t, "run-1", pub.RunID)
	assert.Equal(t, "agent-1", pub.SubjectID)
	assert.True(t, pub.GamingFlagged)
	assert.Equal(t, 0.8, pub.GamingScore)
	assert.Equal(t, "integrated", pub.SophisticationLevel)
	require.Contains(t, pub.AxisScores, "AXIS_A")
	assert.Equal(t, []string{"inconsistent"}, pub.AxisScores["AXIS_A"].Flags)
	assert.Equal(t, int64(1700000000), pub.CreatedAt.Unix())
}

func TestToPublicDilemma(t *testing.T) {
	d := judge.Dilemma{
		AxisLeftPole:      "autonomy",
		AxisRightPole:     "beneficence",
		DilemmaType:       model.DilemmaTypeTragic,
		NonObviousFactors: []string{"hidden_conflict_of_interest"},
		Parameters:        model.ItemParameters{Severity: 0.9, NumAffected: 50},
	}

	pub := toPublicDilemma(d)

	assert.Equal(t, "autonomy", pub.AxisLeftPole)
	assert.Equal(t, "tragic", pub.DilemmaType)
	assert.Equal(t, 0.9, pub.Severity)
	assert.Equal(t, 50, pub.NumAffected)
}

type stubJudge struct {
	score JudgeScore
	err   error
}

func (s stubJudge) ScoreRationale(_ context.Context, _ JudgeDilemma, _ JudgeRationale) (JudgeScore, error) {
	return s.score, s.err
}

func TestJudgeAdapter_ScoreRationale(t *testing.T) {
	adapter := &judgeAdapter{j: stubJudge{score: JudgeScore{GRMCategory: 3, MentionsBothPoles: true}}}

	score, err := adapter.ScoreRationale(context.Background(), judge.Dilemma{}, judge.RationaleInput{Rationale: "because fairness"})

	require.NoError(t, err)
	assert.Equal(t, 3, score.GRMCategory)
	assert.True(t, score.MentionsBothPoles)
}

type stubSubject struct{ resolved string }

func (s stubSubject) Resolve(_ context.Context, opaqueID string) (string, error) {
	return s.resolved, nil
}

func TestSubjectAdapter_Resolve(t *testing.T) {
	adapter := &subjectAdapter{s: stubSubject{resolved: "canonical-subject"}}

	id, err := adapter.Resolve(context.Background(), "opaque-agent")

	require.NoError(t, err)
	assert.Equal(t, "canonical-subject", id)
}

func TestAuthHelperImpl_RequireRole(t *testing.T) {
	subjectMW := func(h http.Handler) http.Handler { return h }
	adminMW := func(h http.Handler) http.Handler { return h }
	helper := &authHelperImpl{subjectRole: subjectMW, adminRole: adminMW}

	assert.NotNil(t, helper.RequireRole(RoleSubject))
	assert.NotNil(t, helper.RequireRole(RoleAdmin))
}

func TestOptions_Apply(t *testing.T) {
	var o resolvedOptions
	WithPort(9090)(&o)
	WithDatabaseURL("postgres://x")(&o)
	WithVersion("1.2.3")(&o)

	assert.Equal(t, 9090, o.port)
	assert.Equal(t, "postgres://x", o.databaseURL)
	assert.Equal(t, "1.2.3", o.version)
}
