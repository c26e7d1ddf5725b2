package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/mse/internal/model"
)

// CreateSnapshot writes a completed run's denormalized profile and, in
// the same transaction, clears is_current on any prior snapshot for the
// subject: at most one current snapshot may exist per subject.
func (db *DB) CreateSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	snap.CreatedAt = time.Now().UTC().UnixMilli()
	snap.IsCurrent = true

	axisScores, err := json.Marshal(snap.AxisScores)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal axis scores: %w", err)
	}
	procedural, err := json.Marshal(snap.Procedural)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal procedural: %w", err)
	}
	capacity, err := json.Marshal(snap.Capacity)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal capacity: %w", err)
	}
	gaming, err := json.Marshal(snap.Gaming)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal gaming: %w", err)
	}
	coupling, err := json.Marshal(snap.Coupling)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal coupling: %w", err)
	}
	si, err := json.Marshal(snap.SI)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: marshal SI: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE snapshots SET is_current = false WHERE subject_id = $1 AND is_current`,
		snap.SubjectID,
	); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: clear prior snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO snapshots (
			id, run_id, subject_id, exam_version, axis_scores, procedural,
			capacity, gaming, coupling, sophistication_index, mr, is_current, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		snap.ID, snap.RunID, snap.SubjectID, snap.ExamVersion, axisScores, procedural,
		capacity, gaming, coupling, si, snap.MR, snap.IsCurrent, snap.CreatedAt,
	); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: insert snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: commit snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the subject's current snapshot.
func (db *DB) LatestSnapshot(ctx context.Context, subjectID string) (model.Snapshot, error) {
	return scanSnapshot(db.pool.QueryRow(ctx, `
		SELECT id, run_id, subject_id, exam_version, axis_scores, procedural,
		       capacity, gaming, coupling, sophistication_index, mr, is_current, created_at
		FROM snapshots WHERE subject_id = $1 AND is_current`, subjectID))
}

// SnapshotHistory returns up to limit snapshots for a subject, most
// recent first.
func (db *DB) SnapshotHistory(ctx context.Context, subjectID string, limit int) ([]model.Snapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, run_id, subject_id, exam_version, axis_scores, procedural,
		       capacity, gaming, coupling, sophistication_index, mr, is_current, created_at
		FROM snapshots WHERE subject_id = $1
		ORDER BY created_at DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: snapshot history: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSnapshotCurrent re-designates snap as the subject's current
// snapshot, clearing any other.
func (db *DB) MarkSnapshotCurrent(ctx context.Context, snapshotID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var subjectID string
	if err := tx.QueryRow(ctx, `SELECT subject_id FROM snapshots WHERE id = $1`, snapshotID).Scan(&subjectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: mark snapshot current: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE snapshots SET is_current = false WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("storage: clear current snapshots: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE snapshots SET is_current = true WHERE id = $1`, snapshotID); err != nil {
		return fmt.Errorf("storage: set current snapshot: %w", err)
	}
	return tx.Commit(ctx)
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var s model.Snapshot
	var axisScores, procedural, capacity, gaming, coupling, si []byte

	err := row.Scan(
		&s.ID, &s.RunID, &s.SubjectID, &s.ExamVersion, &axisScores, &procedural,
		&capacity, &gaming, &coupling, &si, &s.MR, &s.IsCurrent, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: scan snapshot: %w", err)
	}

	if err := json.Unmarshal(axisScores, &s.AxisScores); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal axis scores: %w", err)
	}
	if err := json.Unmarshal(procedural, &s.Procedural); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal procedural: %w", err)
	}
	if err := json.Unmarshal(capacity, &s.Capacity); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal capacity: %w", err)
	}
	if err := json.Unmarshal(gaming, &s.Gaming); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal gaming: %w", err)
	}
	if err := json.Unmarshal(coupling, &s.Coupling); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal coupling: %w", err)
	}
	if err := json.Unmarshal(si, &s.SI); err != nil {
		return model.Snapshot{}, fmt.Errorf("storage: unmarshal SI: %w", err)
	}
	return s, nil
}
