package session

import (
	"context"
	"fmt"

	"github.com/veritas-labs/mse/internal/capacity"
	"github.com/veritas-labs/mse/internal/coupling"
	"github.com/veritas-labs/mse/internal/gaming"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/procedural"
	"github.com/veritas-labs/mse/internal/sophistication"
)

// seFlagMultiplier is applied to every axis's SE_b before snapshot
// emission when the gaming ensemble flags the run.
const seFlagMultiplier = 1.5

// finalizeRun runs the full battery of end-of-run analyzers, commits a
// Snapshot, and transitions the run to its terminal status (completed,
// or flagged if the gaming ensemble fired).
func (c *Context) finalizeRun(ctx context.Context, run model.Run) (model.Snapshot, model.RunStatus, error) {
	responses, err := c.db.ResponsesForRun(ctx, run.ID)
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("session: load responses for finalize: %w", err)
	}

	axes, err := c.runAxes(ctx)
	if err != nil {
		return model.Snapshot{}, "", err
	}
	axisByID := make(map[string]model.Axis, len(axes))
	for _, a := range axes {
		axisByID[a.ID] = a
	}

	items := make(map[string]model.Item, len(responses))
	for _, r := range responses {
		if _, ok := items[r.ItemID]; ok {
			continue
		}
		it, err := c.db.GetItem(ctx, r.ItemID)
		if err != nil {
			return model.Snapshot{}, "", fmt.Errorf("session: load item for finalize: %w", err)
		}
		items[r.ItemID] = it
	}

	gamingResult := gaming.Detect(gamingRecords(responses, items))
	proceduralResult := procedural.Compute(proceduralRecords(responses, items), run.TotalItems)
	capacityResult := capacity.Compute(capacityRecords(responses, items))

	axisScores, err := c.db.AxisScoresForRun(ctx, run.ID)
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("session: load axis scores for finalize: %w", err)
	}
	if gamingResult.Flagged {
		for id, s := range axisScores {
			s.SEB *= seFlagMultiplier
			axisScores[id] = s
		}
	}

	seed := int64(0)
	if run.Config.Seed != nil {
		seed = *run.Config.Seed
	}
	couplingResult := coupling.Analyze(ctx, coupling.Input{
		AxisSeries:         axisSeriesByCode(responses, axisByID),
		BootstrapResamples: c.bootstrapResamples,
		BootstrapBudget:    c.bootstrapBudget,
		Seed:               seed,
	})

	history, err := c.historicalPoints(ctx, run.SubjectID)
	if err != nil {
		return model.Snapshot{}, "", err
	}

	predictions, err := c.finalizeSelfModelPredictions(ctx, run.ID, axisScores)
	if err != nil {
		return model.Snapshot{}, "", err
	}

	// CoherenceScore and VarianceExplained both draw on the coupling
	// analyzer's first-principal-component figure: no independent
	// external coherence analyzer is wired in, so this is the closest
	// available stand-in for both Integration sub-scores rather than two
	// distinct measurements (see DESIGN.md).
	siResult := sophistication.Compute(sophistication.Input{
		AxisBValues:          axisBValues(axisByID, axisScores),
		CoherenceScore:       couplingResult.VarianceExplainedFirstPC,
		VarianceExplained:    couplingResult.VarianceExplainedFirstPC,
		Capacity:             capacityResult,
		GamingScore:          gamingResult.Score,
		HistoricalSnapshots:  history,
		SelfModelPredictions: predictions,
	})

	ratingRow, _, err := c.db.GetRating(ctx, run.SubjectID)
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("session: load rating for finalize: %w", err)
	}

	finalStatus := model.RunStatusCompleted
	if gamingResult.Flagged {
		finalStatus = model.RunStatusFlagged
	}

	snapshotAxisScores := make(map[string]model.AxisScore, len(axisScores))
	for axisID, s := range axisScores {
		code := axisByID[axisID].Code
		if code == "" {
			code = axisID
		}
		snapshotAxisScores[code] = s
	}

	snap := model.Snapshot{
		RunID:       run.ID,
		SubjectID:   run.SubjectID,
		ExamVersion: run.ExamVersion,
		AxisScores:  snapshotAxisScores,
		Procedural:  proceduralResult,
		Capacity:    capacityResult,
		Gaming:      gamingResult,
		Coupling:    couplingResult,
		SI:          siResult,
		MR:          ratingRow.MR,
	}

	created, err := c.db.CreateSnapshot(ctx, snap)
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("session: create snapshot: %w", err)
	}

	if err := c.db.CompleteRunWithAudit(ctx, run.ID, model.RunStatusInProgress, finalStatus, "termination criteria met"); err != nil {
		return model.Snapshot{}, "", fmt.Errorf("session: complete run: %w", err)
	}

	return created, finalStatus, nil
}

func gamingRecords(responses []model.Response, items map[string]model.Item) []gaming.ResponseRecord {
	out := make([]gaming.ResponseRecord, len(responses))
	for i, r := range responses {
		out[i] = gaming.ResponseRecord{
			AxisID:             r.AxisID,
			ConsistencyGroupID: consistencyGroupOf(items[r.ItemID]),
			Pressure:           items[r.ItemID].PressureLevel,
			Permissibility:     r.Permissibility,
			ResponseTimeMs:     r.ResponseTimeMs,
			Rationale:          r.Rationale,
			ForcedChoice:       r.ForcedChoice,
		}
	}
	return out
}

func proceduralRecords(responses []model.Response, items map[string]model.Item) []procedural.ResponseRecord {
	out := make([]procedural.ResponseRecord, len(responses))
	for i, r := range responses {
		out[i] = procedural.ResponseRecord{
			ResponseTimeMs:     r.ResponseTimeMs,
			Confidence:         r.Confidence,
			RationaleLength:    len(r.Rationale),
			Principles:         r.Principles,
			ConsistencyGroupID: consistencyGroupOf(items[r.ItemID]),
			ForcedChoice:       r.ForcedChoice,
		}
	}
	return out
}

func capacityRecords(responses []model.Response, items map[string]model.Item) []capacity.ResponseRecord {
	out := make([]capacity.ResponseRecord, len(responses))
	for i, r := range responses {
		item := items[r.ItemID]
		out[i] = capacity.ResponseRecord{
			Pressure:           item.PressureLevel,
			Confidence:         r.Confidence,
			GRMCategory:        r.GRMCategory,
			InfoNeeded:         r.InfoNeeded,
			ConsistencyGroupID: consistencyGroupOf(item),
			DilemmaType:        item.DilemmaType,
			ForcedChoice:       r.ForcedChoice,
			Permissibility:     r.Permissibility,
		}
	}
	return out
}

func consistencyGroupOf(item model.Item) string {
	if item.ConsistencyGroupID == nil {
		return ""
	}
	return *item.ConsistencyGroupID
}

func axisSeriesByCode(responses []model.Response, axisByID map[string]model.Axis) map[string][]float64 {
	out := make(map[string][]float64)
	for _, r := range responses {
		code := axisByID[r.AxisID].Code
		if code == "" {
			code = r.AxisID
		}
		out[code] = append(out[code], r.Permissibility)
	}
	return out
}

func axisBValues(axisByID map[string]model.Axis, scores map[string]model.AxisScore) []sophistication.AxisBValue {
	out := make([]sophistication.AxisBValue, 0, len(scores))
	for axisID, s := range scores {
		axis := axisByID[axisID]
		out = append(out, sophistication.AxisBValue{AxisCode: axis.Code, Tradition: axis.Tradition, B: s.B})
	}
	return out
}

// historicalPoints loads up to 20 prior snapshots for subjectID and
// reduces each to the summary statistics the Adaptability dimension
// needs, oldest first (RunIndex ascending).
func (c *Context) historicalPoints(ctx context.Context, subjectID string) ([]sophistication.HistoricalPoint, error) {
	snaps, err := c.db.SnapshotHistory(ctx, subjectID, 20)
	if err != nil {
		return nil, fmt.Errorf("session: load snapshot history: %w", err)
	}
	points := make([]sophistication.HistoricalPoint, 0, len(snaps))
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		var sumB, sumSE float64
		for _, score := range s.AxisScores {
			sumB += score.B
			sumSE += score.SEB
		}
		n := float64(len(s.AxisScores))
		meanB, meanSE := 0.0, 0.0
		if n > 0 {
			meanB, meanSE = sumB/n, sumSE/n
		}
		points = append(points, sophistication.HistoricalPoint{
			RunIndex:        len(points),
			MeanB:           meanB,
			MeanSE:          meanSE,
			ProceduralScore: proceduralComposite(s.Procedural),
		})
	}
	return points, nil
}

// proceduralComposite reduces the six procedural sub-statistics to a
// single [0,1]-ish scalar for the Adaptability dimension's
// "procedural improvement" term, which only needs a trend, not a
// calibrated score.
func proceduralComposite(p model.ProceduralResult) float64 {
	return (p.MeanConfidence/100 + p.PrincipleTagDiversity + p.ForcedChoiceStability + p.ItemCompletionRate) / 4
}

// finalizeSelfModelPredictions fills in the actual fitted B for any
// self-predictions recorded during the run, then returns the pairs for
// the Self-Model Accuracy dimension.
func (c *Context) finalizeSelfModelPredictions(ctx context.Context, runID string, axisScores map[string]model.AxisScore) ([]sophistication.SelfModelPrediction, error) {
	rows, err := c.db.SelfModelPredictions(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("session: load self model predictions: %w", err)
	}
	out := make([]sophistication.SelfModelPrediction, 0, len(rows))
	for _, row := range rows {
		score, ok := axisScores[row.AxisID]
		if !ok {
			continue
		}
		if err := c.db.FinalizeSelfModelPrediction(ctx, runID, row.AxisID, score.B); err != nil {
			return nil, fmt.Errorf("session: finalize self model prediction: %w", err)
		}
		out = append(out, sophistication.SelfModelPrediction{PredictedB: row.PredictedB, ActualB: score.B})
	}
	return out, nil
}
