package session

import (
	"context"
	"fmt"

	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/selector"
)

// NextItem returns the next item for a run to present, or a completion
// descriptor if the run has finished. Fetching "next" on a completed
// run returns Done=true rather than erroring.
func (c *Context) NextItem(ctx context.Context, runID string) (NextItemResult, error) {
	run, err := c.db.GetRun(ctx, runID)
	if err != nil {
		return NextItemResult{}, fmt.Errorf("session: get run: %w", err)
	}
	if run.Status != model.RunStatusInProgress {
		return NextItemResult{Done: true, Run: run}, nil
	}

	item, axisID, done, err := c.selectNext(ctx, run)
	if err != nil {
		return NextItemResult{}, err
	}
	return NextItemResult{Item: item, AxisID: axisID, Done: done, Run: run}, nil
}

// selectNext builds the selector's Input from current Storage state and
// delegates to selector.Next. It is pure given the run's current
// persisted state: calling it twice without an intervening response
// yields the same item.
func (c *Context) selectNext(ctx context.Context, run model.Run) (*model.Item, string, bool, error) {
	axes, err := c.runAxes(ctx)
	if err != nil {
		return nil, "", false, err
	}

	axisIDs := make([]string, len(axes))
	pools := make(map[string][]model.Item, len(axes))
	for i, axis := range axes {
		axisIDs[i] = axis.ID
		items, err := c.db.ItemsForAxis(ctx, axis.ID, run.ExamVersion)
		if err != nil {
			return nil, "", false, fmt.Errorf("session: load item pool for axis %s: %w", axis.Code, err)
		}
		pools[axis.ID] = items
	}

	responses, err := c.db.ResponsesForRun(ctx, run.ID)
	if err != nil {
		return nil, "", false, fmt.Errorf("session: load responses: %w", err)
	}
	shown, err := c.shownItemsForRun(ctx, responses)
	if err != nil {
		return nil, "", false, err
	}

	scores, err := c.db.AxisScoresForRun(ctx, run.ID)
	if err != nil {
		return nil, "", false, fmt.Errorf("session: load axis scores: %w", err)
	}

	seed := int64(0)
	if run.Config.Seed != nil {
		seed = *run.Config.Seed
	}

	item, axisID, done := selector.Next(selector.Input{
		AxisIDs:  axisIDs,
		Pools:    pools,
		Shown:    shown,
		AxisFits: axisFitsFromScores(scores),
		Epsilon:  run.Config.Epsilon,
		Seed:     seed,
	})
	if done {
		return nil, "", true, nil
	}
	return item, axisID, false, nil
}

// runComplete reports whether every axis has independently met its
// termination criteria, or completed_items has reached total_items.
func (c *Context) runComplete(ctx context.Context, run model.Run) (bool, error) {
	if run.CompletedItems >= run.TotalItems {
		return true, nil
	}

	axes, err := c.runAxes(ctx)
	if err != nil {
		return false, err
	}
	scores, err := c.db.AxisScoresForRun(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("session: load axis scores: %w", err)
	}
	responses, err := c.db.ResponsesForRun(ctx, run.ID)
	if err != nil {
		return false, fmt.Errorf("session: load responses: %w", err)
	}
	shown, err := c.shownItemsForRun(ctx, responses)
	if err != nil {
		return false, err
	}
	shownByAxis := make(map[string][]selector.ShownItem)
	for _, s := range shown {
		shownByAxis[s.AxisID] = append(shownByAxis[s.AxisID], s)
	}

	for _, axis := range axes {
		score, ok := scores[axis.ID]
		if !ok {
			return false, nil
		}
		pool, err := c.db.ItemsForAxis(ctx, axis.ID, run.ExamVersion)
		if err != nil {
			return false, fmt.Errorf("session: load item pool for axis %s: %w", axis.Code, err)
		}
		groupsComplete, err := consistencyGroupsComplete(ctx, c.db, run.ID, pool, shownByAxis[axis.ID])
		if err != nil {
			return false, err
		}
		if !axisStopped(score, groupsComplete) {
			return false, nil
		}
	}
	return true, nil
}
