package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/mse/internal/model"
)

// GetRating returns a subject's Moral Rating accumulator, or the zero
// value with ok=false if the subject has never completed a run.
func (db *DB) GetRating(ctx context.Context, subjectID string) (model.Rating, bool, error) {
	var r model.Rating
	err := db.pool.QueryRow(ctx, `
		SELECT subject_id, mr, uncertainty, items_processed, peak, last_updated
		FROM ratings WHERE subject_id = $1`, subjectID,
	).Scan(&r.SubjectID, &r.MR, &r.Uncertainty, &r.ItemsProcessed, &r.Peak, &r.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rating{}, false, nil
	}
	if err != nil {
		return model.Rating{}, false, fmt.Errorf("storage: get rating: %w", err)
	}
	return r, true, nil
}

// UpsertRating writes a subject's updated Moral Rating accumulator.
func (db *DB) UpsertRating(ctx context.Context, r model.Rating) error {
	r.LastUpdated = time.Now().UTC().UnixMilli()
	_, err := db.pool.Exec(ctx, `
		INSERT INTO ratings (subject_id, mr, uncertainty, items_processed, peak, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (subject_id) DO UPDATE SET
			mr = EXCLUDED.mr, uncertainty = EXCLUDED.uncertainty,
			items_processed = EXCLUDED.items_processed, peak = EXCLUDED.peak,
			last_updated = EXCLUDED.last_updated`,
		r.SubjectID, r.MR, r.Uncertainty, r.ItemsProcessed, r.Peak, r.LastUpdated)
	if err != nil {
		return fmt.Errorf("storage: upsert rating: %w", err)
	}
	return nil
}

// Leaderboard returns the top subjects by Moral Rating, descending.
func (db *DB) Leaderboard(ctx context.Context, limit int) ([]model.Rating, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx, `
		SELECT subject_id, mr, uncertainty, items_processed, peak, last_updated
		FROM ratings ORDER BY mr DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: leaderboard: %w", err)
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.SubjectID, &r.MR, &r.Uncertainty, &r.ItemsProcessed, &r.Peak, &r.LastUpdated); err != nil {
			return nil, fmt.Errorf("storage: scan rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
