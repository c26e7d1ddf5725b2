// Package session implements the Run state machine and orchestrator:
// it wires the selector, estimator, gaming, coupling, sophistication,
// rating, procedural, capacity, judge, and parser collaborators
// together around a Storage-backed Run.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veritas-labs/mse/internal/estimator"
	"github.com/veritas-labs/mse/internal/judge"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/selector"
	"github.com/veritas-labs/mse/internal/storage"
)

// Axis-level termination thresholds.
const (
	minItemsPerAxis = 8
	maxItemsPerAxis = 15
	maxSEB          = 0.06
)

// Context is the orchestrator's handle on its collaborators: the
// Storage connection, the Judge adapter, and the defaults a new Run is
// created with. It owns no module-level state; callers construct one
// explicitly per process and share it across concurrent sessions.
type Context struct {
	db     *storage.DB
	judge  judge.Judge
	logger *slog.Logger

	defaultItemsPerAxis int
	defaultEpsilon      float64
	judgeTimeout        time.Duration
	bootstrapResamples  int
	bootstrapBudget     time.Duration
}

// Options configures a new Context.
type Options struct {
	DefaultItemsPerAxis int
	DefaultEpsilon      float64
	JudgeTimeout        time.Duration
	BootstrapResamples  int
	BootstrapBudget     time.Duration
}

// NewContext constructs an orchestrator Context over db and j.
func NewContext(db *storage.DB, j judge.Judge, logger *slog.Logger, opts Options) *Context {
	if opts.DefaultItemsPerAxis <= 0 {
		opts.DefaultItemsPerAxis = 18
	}
	if opts.DefaultEpsilon <= 0 {
		opts.DefaultEpsilon = 0.2
	}
	if opts.JudgeTimeout <= 0 {
		opts.JudgeTimeout = judge.DefaultTimeout
	}
	if opts.BootstrapResamples <= 0 {
		opts.BootstrapResamples = 1000
	}
	if opts.BootstrapBudget <= 0 {
		opts.BootstrapBudget = 10 * time.Second
	}
	return &Context{
		db:                  db,
		judge:               j,
		logger:              logger,
		defaultItemsPerAxis: opts.DefaultItemsPerAxis,
		defaultEpsilon:      opts.DefaultEpsilon,
		judgeTimeout:        opts.JudgeTimeout,
		bootstrapResamples:  opts.BootstrapResamples,
		bootstrapBudget:     opts.BootstrapBudget,
	}
}

// NextItemResult is what GET /evaluations/{id}/next resolves to: either
// an item to present, or a completion descriptor.
type NextItemResult struct {
	Item   *model.Item
	AxisID string
	Done   bool
	Run    model.Run
}

// runAxes loads the active axes that make up the exam, ordered by code
// (the fixed round-robin order the selector consults).
func (c *Context) runAxes(ctx context.Context) ([]model.Axis, error) {
	axes, err := c.db.ListAxes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("session: list axes: %w", err)
	}
	return axes, nil
}

// shownItemsForRun reconstructs the selector's ShownItem log from a
// run's stored responses, joining each response back to its item for
// the selection-relevant metadata.
func (c *Context) shownItemsForRun(ctx context.Context, responses []model.Response) ([]selector.ShownItem, error) {
	shown := make([]selector.ShownItem, 0, len(responses))
	for _, r := range responses {
		item, err := c.db.GetItem(ctx, r.ItemID)
		if err != nil {
			return nil, fmt.Errorf("session: load item %s for shown history: %w", r.ItemID, err)
		}
		groupID := ""
		if item.ConsistencyGroupID != nil {
			groupID = *item.ConsistencyGroupID
		}
		shown = append(shown, selector.ShownItem{
			ItemID:             r.ItemID,
			AxisID:             r.AxisID,
			Position:           r.PositionInRun,
			ConsistencyGroupID: groupID,
			Pressure:           item.PressureLevel,
			Permissibility:     r.Permissibility,
			DilemmaType:        item.DilemmaType,
		})
	}
	return shown, nil
}

func axisFitsFromScores(scores map[string]model.AxisScore) map[string]selector.AxisFit {
	out := make(map[string]selector.AxisFit, len(scores))
	for axisID, s := range scores {
		out[axisID] = selector.AxisFit{B: s.B, SEB: s.SEB}
	}
	return out
}

// axisStopped reports whether an axis has met its termination criteria:
// either it has reached the hard item cap, or it has the minimum item
// count, a sufficiently small standard error, and every consistency
// group it started has been fully answered.
func axisStopped(score model.AxisScore, allGroupsComplete bool) bool {
	if score.NItems >= maxItemsPerAxis {
		return true
	}
	return score.NItems >= minItemsPerAxis && score.SEB <= maxSEB && allGroupsComplete
}

// consistencyGroupsComplete reports whether every consistency group
// represented among shown items on an axis has had all of its member
// items answered within the run.
func consistencyGroupsComplete(ctx context.Context, db *storage.DB, runID string, pool []model.Item, shownInAxis []selector.ShownItem) (bool, error) {
	started := make(map[string]bool)
	for _, s := range shownInAxis {
		if s.ConsistencyGroupID != "" {
			started[s.ConsistencyGroupID] = true
		}
	}
	if len(started) == 0 {
		return true, nil
	}

	membersByGroup := make(map[string][]string)
	for _, it := range pool {
		if it.ConsistencyGroupID != nil && started[*it.ConsistencyGroupID] {
			membersByGroup[*it.ConsistencyGroupID] = append(membersByGroup[*it.ConsistencyGroupID], it.ID)
		}
	}

	for _, memberIDs := range membersByGroup {
		for _, itemID := range memberIDs {
			answered, err := db.HasResponse(ctx, runID, itemID)
			if err != nil {
				return false, fmt.Errorf("session: check consistency group member: %w", err)
			}
			if !answered {
				return false, nil
			}
		}
	}
	return true, nil
}
