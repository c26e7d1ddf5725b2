package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/mse/internal/model"
)

// UpsertAxisScore writes the current RLTM fit for (run, axis), replacing
// any prior fit. Called after every response on the axis.
func (db *DB) UpsertAxisScore(ctx context.Context, s model.AxisScore) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO axis_scores (run_id, axis_id, b, a, se_b, n_items, flags)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (run_id, axis_id) DO UPDATE SET
			b = EXCLUDED.b, a = EXCLUDED.a, se_b = EXCLUDED.se_b,
			n_items = EXCLUDED.n_items, flags = EXCLUDED.flags`,
		s.RunID, s.AxisID, s.B, s.A, s.SEB, s.NItems, s.Flags)
	if err != nil {
		return fmt.Errorf("storage: upsert axis score: %w", err)
	}
	return nil
}

// AxisScoresForRun returns every axis's current fit for a run, keyed by
// axis ID.
func (db *DB) AxisScoresForRun(ctx context.Context, runID string) (map[string]model.AxisScore, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT run_id, axis_id, b, a, se_b, n_items, flags
		FROM axis_scores WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: axis scores for run: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.AxisScore)
	for rows.Next() {
		var s model.AxisScore
		if err := rows.Scan(&s.RunID, &s.AxisID, &s.B, &s.A, &s.SEB, &s.NItems, &s.Flags); err != nil {
			return nil, fmt.Errorf("storage: scan axis score: %w", err)
		}
		out[s.AxisID] = s
	}
	return out, rows.Err()
}

// GetAxisScore returns the current fit for a single (run, axis) pair.
func (db *DB) GetAxisScore(ctx context.Context, runID, axisID string) (model.AxisScore, bool, error) {
	var s model.AxisScore
	err := db.pool.QueryRow(ctx, `
		SELECT run_id, axis_id, b, a, se_b, n_items, flags
		FROM axis_scores WHERE run_id = $1 AND axis_id = $2`, runID, axisID,
	).Scan(&s.RunID, &s.AxisID, &s.B, &s.A, &s.SEB, &s.NItems, &s.Flags)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AxisScore{}, false, nil
	}
	if err != nil {
		return model.AxisScore{}, false, fmt.Errorf("storage: get axis score: %w", err)
	}
	return s, true, nil
}
