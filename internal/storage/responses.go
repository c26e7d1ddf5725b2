package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veritas-labs/mse/internal/model"
)

// CreateResponse inserts a response row. A unique (run_id, item_id)
// constraint enforces idempotence: re-submitting an answer to an
// already-answered item yields ErrDuplicateResponse.
func (db *DB) CreateResponse(ctx context.Context, r model.Response) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO responses (
			run_id, item_id, axis_id, choice, forced_choice, permissibility,
			confidence, principles, rationale, info_needed, response_time_ms,
			grm_category, mentions_both_poles, identifies_non_obvious,
			recognizes_residue, position_in_run, submitted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		r.RunID, r.ItemID, r.AxisID, r.Choice, r.ForcedChoice, r.Permissibility,
		r.Confidence, r.Principles, r.Rationale, r.InfoNeeded, r.ResponseTimeMs,
		r.GRMCategory, r.MentionsBothPoles, r.IdentifiesNonObvious,
		r.RecognizesResidue, r.PositionInRun, r.SubmittedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateResponse
		}
		return fmt.Errorf("storage: create response: %w", err)
	}
	return nil
}

// ResponsesForRun returns every response recorded for a run, in the
// order items were presented.
func (db *DB) ResponsesForRun(ctx context.Context, runID string) ([]model.Response, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT run_id, item_id, axis_id, choice, forced_choice, permissibility,
		       confidence, principles, rationale, info_needed, response_time_ms,
		       grm_category, mentions_both_poles, identifies_non_obvious,
		       recognizes_residue, position_in_run, submitted_at
		FROM responses WHERE run_id = $1 ORDER BY position_in_run ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: responses for run: %w", err)
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		var r model.Response
		if err := rows.Scan(
			&r.RunID, &r.ItemID, &r.AxisID, &r.Choice, &r.ForcedChoice, &r.Permissibility,
			&r.Confidence, &r.Principles, &r.Rationale, &r.InfoNeeded, &r.ResponseTimeMs,
			&r.GRMCategory, &r.MentionsBothPoles, &r.IdentifiesNonObvious,
			&r.RecognizesResidue, &r.PositionInRun, &r.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasResponse reports whether itemID has already been answered in runID,
// used by the session orchestrator to short-circuit before attempting an
// insert that would otherwise race against the unique constraint.
func (db *DB) HasResponse(ctx context.Context, runID, itemID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM responses WHERE run_id = $1 AND item_id = $2)`,
		runID, itemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: has response: %w", err)
	}
	return exists, nil
}

// SelfModelPredictions returns the subject's pre-feedback self-estimates
// of their own axis positions alongside the actual fitted B, used by the
// Sophistication Index's SelfModelAccuracy dimension.
func (db *DB) SelfModelPredictions(ctx context.Context, runID string) ([]SelfModelPredictionRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT axis_id, predicted_b, actual_b FROM self_model_predictions
		WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: self model predictions: %w", err)
	}
	defer rows.Close()

	var out []SelfModelPredictionRow
	for rows.Next() {
		var p SelfModelPredictionRow
		if err := rows.Scan(&p.AxisID, &p.PredictedB, &p.ActualB); err != nil {
			return nil, fmt.Errorf("storage: scan self model prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SelfModelPredictionRow is one axis's self-estimate/actual pair.
type SelfModelPredictionRow struct {
	AxisID     string
	PredictedB float64
	ActualB    float64
}

// RecordSelfModelPrediction stores a subject's pre-feedback self-estimate
// for one axis; actualB is filled in once the axis's RLTM fit is final.
func (db *DB) RecordSelfModelPrediction(ctx context.Context, runID, axisID string, predictedB float64) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO self_model_predictions (run_id, axis_id, predicted_b, actual_b)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (run_id, axis_id) DO UPDATE SET predicted_b = EXCLUDED.predicted_b`,
		runID, axisID, predictedB)
	if err != nil {
		return fmt.Errorf("storage: record self model prediction: %w", err)
	}
	return nil
}

// FinalizeSelfModelPrediction fills in the actual fitted B once an
// axis's estimate is final, for any subject who submitted a prediction.
func (db *DB) FinalizeSelfModelPrediction(ctx context.Context, runID, axisID string, actualB float64) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE self_model_predictions SET actual_b = $1
		WHERE run_id = $2 AND axis_id = $3`, actualB, runID, axisID)
	if err != nil {
		return fmt.Errorf("storage: finalize self model prediction: %w", err)
	}
	return nil
}
