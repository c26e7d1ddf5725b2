package storage

import (
	"context"
	"fmt"

	"github.com/veritas-labs/mse/internal/model"
)

// insertAuditEntry records a single run state-machine transition. Shared
// by the transactional Create/Complete helpers in runs.go so the audit
// row always lands in the same transaction as the state change it
// describes.
func insertAuditEntry(ctx context.Context, execer pgxExecer, e model.AuditEntry) error {
	_, err := execer.Exec(ctx, `
		INSERT INTO run_audit_log (run_id, from_state, to_state, reason, at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.RunID, e.FromState, e.ToState, e.Reason, e.At)
	if err != nil {
		return fmt.Errorf("storage: insert audit entry: %w", err)
	}
	return nil
}

// AuditLog returns the full transition history for a run, oldest first.
func (db *DB) AuditLog(ctx context.Context, runID string) ([]model.AuditEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT run_id, from_state, to_state, reason, at
		FROM run_audit_log WHERE run_id = $1 ORDER BY at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: audit log: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.RunID, &e.FromState, &e.ToState, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("storage: scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
