package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veritas-labs/mse/internal/estimator"
	"github.com/veritas-labs/mse/internal/judge"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/parser"
	"github.com/veritas-labs/mse/internal/rating"
	"github.com/veritas-labs/mse/internal/storage"
)

// initialUncertainty is the Moral Rating uncertainty a subject starts
// with before any item has been processed. The starting mr of 1000 is
// fixed; 350 mirrors the wide-prior convention the MR update's
// sqrt-decay already assumes (see internal/rating).
const (
	initialMR          = 1000.0
	initialUncertainty = 350.0
)

// SubmitResult is what submitting a response resolves to: the recorded
// response, and — only once the run has just completed or flagged as a
// result of this submission — the committed snapshot.
type SubmitResult struct {
	Response model.Response
	Warnings []parser.Warning
	Run      model.Run
	Snapshot *model.Snapshot
}

// SubmitResponse validates and records one answer to itemID within
// runID, updates the axis's RLTM fit, and checks termination criteria.
// Submitting to an already-answered item is rejected with
// storage.ErrDuplicateResponse; submitting to a non-in_progress run is
// rejected with storage.ErrRunAlreadyComplete.
func (c *Context) SubmitResponse(ctx context.Context, runID, itemID string, payload map[string]any) (SubmitResult, error) {
	run, err := c.db.GetRun(ctx, runID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: get run: %w", err)
	}
	if run.Status != model.RunStatusInProgress {
		return SubmitResult{}, storage.ErrRunAlreadyComplete
	}

	answered, err := c.db.HasResponse(ctx, runID, itemID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: check existing response: %w", err)
	}
	if answered {
		return SubmitResult{}, storage.ErrDuplicateResponse
	}

	item, err := c.db.GetItem(ctx, itemID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: load item: %w", err)
	}
	axis, err := c.db.GetAxis(ctx, item.AxisID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: load axis: %w", err)
	}

	parsed, err := parser.Parse(payload)
	if err != nil {
		return SubmitResult{}, err
	}

	score, err := c.scoreRationale(ctx, item, parsed.Response)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: score rationale: %w", err)
	}

	existing, err := c.db.ResponsesForRun(ctx, runID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("session: load existing responses: %w", err)
	}

	resp := parsed.Response
	resp.RunID = runID
	resp.ItemID = itemID
	resp.AxisID = item.AxisID
	resp.GRMCategory = score.GRMCategory
	resp.MentionsBothPoles = score.MentionsBothPoles
	resp.IdentifiesNonObvious = score.IdentifiesNonObvious
	resp.RecognizesResidue = score.RecognizesResidue
	resp.PositionInRun = len(existing) + 1
	resp.SubmittedAt = time.Now().UTC().UnixMilli()

	if err := c.db.CreateResponse(ctx, resp); err != nil {
		return SubmitResult{}, err
	}

	if err := c.refitAxis(ctx, runID, item.AxisID, append(existing, resp)); err != nil {
		return SubmitResult{}, err
	}

	if err := c.applyConsistencyFlag(ctx, runID, item, resp); err != nil {
		return SubmitResult{}, err
	}

	if err := c.updateRating(ctx, run.SubjectID, item, score.GRMCategory); err != nil {
		return SubmitResult{}, err
	}

	completedItems := run.CompletedItems + 1
	if err := c.db.UpdateRunProgress(ctx, runID, completedItems); err != nil {
		return SubmitResult{}, fmt.Errorf("session: update run progress: %w", err)
	}
	run.CompletedItems = completedItems

	result := SubmitResult{Response: resp, Warnings: parsed.Warnings, Run: run}

	done, err := c.runComplete(ctx, run)
	if err != nil {
		return SubmitResult{}, err
	}
	if !done {
		return result, nil
	}

	snap, finalStatus, err := c.finalizeRun(ctx, run)
	if err != nil {
		return SubmitResult{}, err
	}
	run.Status = finalStatus
	result.Run = run
	result.Snapshot = &snap
	return result, nil
}

// scoreRationale invokes the configured Judge with a bounded deadline,
// translating the item into the Judge's minimal Dilemma view.
func (c *Context) scoreRationale(ctx context.Context, item model.Item, resp model.Response) (judge.Score, error) {
	axis, err := c.db.GetAxis(ctx, item.AxisID)
	if err != nil {
		return judge.Score{}, fmt.Errorf("load axis for judge: %w", err)
	}

	dilemma := judge.Dilemma{
		AxisLeftPole:               axis.LeftPole,
		AxisRightPole:              axis.RightPole,
		DilemmaType:                item.DilemmaType,
		NonObviousFactors:          item.NonObviousFactors,
		RequiresResidueRecognition: item.RequiresResidueRecognition,
		Parameters:                item.Parameters,
	}

	scoreCtx, cancel := context.WithTimeout(ctx, c.judgeTimeout)
	defer cancel()

	score, err := c.judge.ScoreRationale(scoreCtx, dilemma, judge.RationaleInput{
		Rationale:  resp.Rationale,
		Principles: resp.Principles,
		InfoNeeded: resp.InfoNeeded,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			heuristic := judge.NewHeuristicJudge()
			return heuristic.ScoreRationale(ctx, dilemma, judge.RationaleInput{
				Rationale:  resp.Rationale,
				Principles: resp.Principles,
				InfoNeeded: resp.InfoNeeded,
			})
		}
		return judge.Score{}, err
	}
	return score, nil
}

// updateRating applies one Elo-like Moral Rating update for subjectID
// from a single item's GRM category, creating the subject's rating row
// with its initial defaults on first use.
func (c *Context) updateRating(ctx context.Context, subjectID string, item model.Item, grmCategory int) error {
	r, ok, err := c.db.GetRating(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("session: load rating: %w", err)
	}
	if !ok {
		r = model.Rating{SubjectID: subjectID, MR: initialMR, Uncertainty: initialUncertainty, Peak: initialMR}
	}

	expertDisagreement := 0.0
	if item.ExpertDisagreement != nil {
		expertDisagreement = *item.ExpertDisagreement
	}
	difficulty := rating.ItemDifficulty(item.PressureLevel, item.DilemmaType, expertDisagreement)

	newMR, newUncertainty := rating.Update(r.MR, r.Uncertainty, r.ItemsProcessed, difficulty, grmCategory)
	r.MR = newMR
	r.Uncertainty = newUncertainty
	r.ItemsProcessed++
	r.Peak = rating.Peak(r.Peak, r.MR)

	return c.db.UpsertRating(ctx, r)
}

// refitAxis recomputes the RLTM fit for axisID from every response on
// that axis within the run, including the one just recorded, and
// persists the updated AxisScore.
func (c *Context) refitAxis(ctx context.Context, runID, axisID string, responses []model.Response) error {
	var obs []estimator.Observation
	for _, r := range responses {
		if r.AxisID != axisID {
			continue
		}
		item, err := c.db.GetItem(ctx, r.ItemID)
		if err != nil {
			return fmt.Errorf("session: load item for refit: %w", err)
		}
		obs = append(obs, estimator.Observation{Pressure: item.PressureLevel, Permissibility: r.Permissibility})
	}

	fit := estimator.Run(obs)
	return c.db.UpsertAxisScore(ctx, model.AxisScore{
		RunID:  runID,
		AxisID: axisID,
		B:      fit.B,
		A:      fit.A,
		SEB:    fit.SEB,
		NItems: fit.N,
		Flags:  fit.Flags,
	})
}

// applyConsistencyFlag checks whether item's consistency group (if any)
// now has a forced-choice disagreement among its answered members, and
// if so flags the axis's current AxisScore as inconsistent.
func (c *Context) applyConsistencyFlag(ctx context.Context, runID string, item model.Item, resp model.Response) error {
	if item.ConsistencyGroupID == nil {
		return nil
	}
	group, err := c.db.ConsistencyGroup(ctx, *item.ConsistencyGroupID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return fmt.Errorf("session: load consistency group: %w", err)
	}

	responses, err := c.db.ResponsesForRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("session: load responses for consistency check: %w", err)
	}
	byItem := make(map[string]model.Response, len(responses))
	for _, r := range responses {
		byItem[r.ItemID] = r
	}
	byItem[resp.ItemID] = resp

	var forced model.ForcedChoice
	answeredCount := 0
	inconsistent := false
	for _, memberID := range group.ItemIDs {
		r, ok := byItem[memberID]
		if !ok {
			continue
		}
		answeredCount++
		if answeredCount == 1 {
			forced = r.ForcedChoice
		} else if r.ForcedChoice != forced {
			inconsistent = true
		}
	}
	if !inconsistent {
		return nil
	}

	score, ok, err := c.db.GetAxisScore(ctx, runID, item.AxisID)
	if err != nil {
		return fmt.Errorf("session: load axis score for consistency flag: %w", err)
	}
	if !ok || score.HasFlag(model.FlagInconsistent) {
		return nil
	}
	score.Flags = append(score.Flags, model.FlagInconsistent)
	return c.db.UpsertAxisScore(ctx, score)
}
