package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veritas-labs/mse/internal/model"
)

// pgxExecer is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// helpers below run inside or outside a transaction.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateRun inserts a new in_progress run for a subject. The caller is
// responsible for enforcing that at most one run per subject is
// in_progress; this is additionally protected by a partial unique index
// in the schema.
func (db *DB) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	return db.createRun(ctx, db.pool, run)
}

// CreateRunWithAudit inserts a run and its creation audit entry in a
// single transaction.
func (db *DB) CreateRunWithAudit(ctx context.Context, run model.Run, reason string) (model.Run, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := db.createRun(ctx, tx, run)
	if err != nil {
		return model.Run{}, err
	}

	if err := insertAuditEntry(ctx, tx, model.AuditEntry{
		RunID:     created.ID,
		FromState: "",
		ToState:   model.RunStatusInProgress,
		Reason:    reason,
		At:        created.StartedAt,
	}); err != nil {
		return model.Run{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Run{}, fmt.Errorf("storage: commit create run: %w", err)
	}
	return created, nil
}

func (db *DB) createRun(ctx context.Context, execer pgxExecer, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	run.StartedAt = now
	run.UpdatedAt = now
	run.Status = model.RunStatusInProgress

	_, err := execer.Exec(ctx, `
		INSERT INTO runs (id, subject_id, exam_version, status, items_per_axis, epsilon, seed,
		                   language, total_items, completed_items, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		run.ID, run.SubjectID, run.ExamVersion, run.Status,
		run.Config.ItemsPerAxis, run.Config.Epsilon, run.Config.Seed, run.Config.Language,
		run.TotalItems, run.CompletedItems, run.StartedAt, run.UpdatedAt,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: create run: %w", err)
	}
	return run, nil
}

// GetRun fetches a run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (model.Run, error) {
	return scanRun(db.pool.QueryRow(ctx, `
		SELECT id, subject_id, exam_version, status, items_per_axis, epsilon, seed,
		       language, total_items, completed_items, started_at, updated_at, completed_at
		FROM runs WHERE id = $1`, id))
}

// ActiveRunForSubject returns the subject's in_progress run, if any.
func (db *DB) ActiveRunForSubject(ctx context.Context, subjectID string) (model.Run, error) {
	return scanRun(db.pool.QueryRow(ctx, `
		SELECT id, subject_id, exam_version, status, items_per_axis, epsilon, seed,
		       language, total_items, completed_items, started_at, updated_at, completed_at
		FROM runs WHERE subject_id = $1 AND status = $2`, subjectID, model.RunStatusInProgress))
}

func scanRun(row rowScanner) (model.Run, error) {
	var r model.Run
	err := row.Scan(
		&r.ID, &r.SubjectID, &r.ExamVersion, &r.Status,
		&r.Config.ItemsPerAxis, &r.Config.Epsilon, &r.Config.Seed, &r.Config.Language,
		&r.TotalItems, &r.CompletedItems, &r.StartedAt, &r.UpdatedAt, &r.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: scan run: %w", err)
	}
	return r, nil
}

// UpdateRunProgress advances completed_items after a response is recorded.
func (db *DB) UpdateRunProgress(ctx context.Context, runID string, completedItems int) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET completed_items = $1, updated_at = now()
		 WHERE id = $2 AND status = $3`, completedItems, runID, model.RunStatusInProgress)
	if err != nil {
		return fmt.Errorf("storage: update run progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunAlreadyComplete
	}
	return nil
}

// CompleteRun transitions a run to a terminal status. Idempotent: if the
// run is already in that terminal status, returns nil without error; if
// it is in a different terminal status, returns ErrRunAlreadyComplete.
func (db *DB) CompleteRun(ctx context.Context, runID string, next model.RunStatus) error {
	return db.completeRun(ctx, db.pool, runID, next)
}

// CompleteRunWithAudit transitions a run and records the audit entry
// transactionally.
func (db *DB) CompleteRunWithAudit(ctx context.Context, runID string, from, next model.RunStatus, reason string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := db.completeRun(ctx, tx, runID, next); err != nil {
		return err
	}

	if err := insertAuditEntry(ctx, tx, model.AuditEntry{
		RunID:     runID,
		FromState: from,
		ToState:   next,
		Reason:    reason,
		At:        time.Now().UTC(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *DB) completeRun(ctx context.Context, execer pgxExecer, runID string, next model.RunStatus) error {
	tag, err := execer.Exec(ctx, `
		UPDATE runs SET status = $1, completed_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3`, next, runID, model.RunStatusInProgress)
	if err != nil {
		return fmt.Errorf("storage: complete run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if current.Status == next {
		return nil
	}
	return ErrRunAlreadyComplete
}

// ListRunsBySubject returns runs for a subject, most recent first,
// paginated with limit clamped to [1,1000].
func (db *DB) ListRunsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]model.Run, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id, subject_id, exam_version, status, items_per_axis, epsilon, seed,
		       language, total_items, completed_items, started_at, updated_at, completed_at
		FROM runs WHERE subject_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3`, subjectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
