package session

import (
	"context"
	"fmt"

	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/storage"
)

// StartRun creates a new in_progress run for subjectID against the
// given exam version, applying config defaults where the caller left
// them zero. It rejects the request if the subject already has an
// active run: at most one run may be in_progress per subject.
func (c *Context) StartRun(ctx context.Context, subjectID, examVersionCode string, cfg model.RunConfig) (model.Run, error) {
	if _, err := c.db.ActiveRunForSubject(ctx, subjectID); err == nil {
		return model.Run{}, ErrActiveRunExists
	} else if err != storage.ErrNotFound {
		return model.Run{}, fmt.Errorf("session: check active run: %w", err)
	}

	version, err := c.db.ExamVersion(ctx, examVersionCode)
	if err != nil {
		if err == storage.ErrNotFound {
			return model.Run{}, fmt.Errorf("%w: unknown exam version %q", ErrInvalidConfig, examVersionCode)
		}
		return model.Run{}, fmt.Errorf("session: load exam version: %w", err)
	}

	if cfg.ItemsPerAxis <= 0 {
		cfg.ItemsPerAxis = version.ItemsPerAxis
	}
	if cfg.ItemsPerAxis <= 0 {
		cfg.ItemsPerAxis = c.defaultItemsPerAxis
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = c.defaultEpsilon
	}
	if cfg.Epsilon < 0 || cfg.Epsilon > 1 {
		return model.Run{}, fmt.Errorf("%w: epsilon must be within [0,1]", ErrInvalidConfig)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	axes, err := c.runAxes(ctx)
	if err != nil {
		return model.Run{}, err
	}
	if len(axes) == 0 {
		return model.Run{}, fmt.Errorf("%w: no active axes configured", ErrInvalidConfig)
	}

	run := model.Run{
		SubjectID:   subjectID,
		ExamVersion: examVersionCode,
		Config:      cfg,
		TotalItems:  cfg.ItemsPerAxis * len(axes),
	}

	created, err := c.db.CreateRunWithAudit(ctx, run, "started")
	if err != nil {
		return model.Run{}, fmt.Errorf("session: create run: %w", err)
	}
	return created, nil
}
