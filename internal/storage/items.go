package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/mse/internal/model"
)

// ItemsForAxis returns the published items belonging to axisID, for a
// given exam version code.
func (db *DB) ItemsForAxis(ctx context.Context, axisID, examVersion string) ([]model.Item, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT i.id, i.code, i.axis_id, i.pressure_level, i.dilemma_type,
		       i.option_a, i.option_b, i.option_c, i.option_d,
		       i.severity, i.certainty, i.immediacy, i.relationship, i.consent,
		       i.reversibility, i.legality, i.num_affected,
		       i.consistency_group_id, i.meta_ethical_type, i.expert_disagreement,
		       i.non_obvious_factors, i.requires_residue_recognition, i.published
		FROM items i
		JOIN exam_version_items evi ON evi.item_id = i.id
		WHERE i.axis_id = $1 AND evi.exam_version = $2 AND i.published
		ORDER BY i.code`, axisID, examVersion)
	if err != nil {
		return nil, fmt.Errorf("storage: items for axis: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem fetches a single item by ID.
func (db *DB) GetItem(ctx context.Context, id string) (model.Item, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, code, axis_id, pressure_level, dilemma_type,
		       option_a, option_b, option_c, option_d,
		       severity, certainty, immediacy, relationship, consent,
		       reversibility, legality, num_affected,
		       consistency_group_id, meta_ethical_type, expert_disagreement,
		       non_obvious_factors, requires_residue_recognition, published
		FROM items WHERE id = $1`, id)

	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("storage: get item: %w", err)
	}
	return it, nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.Item, error) {
	var it model.Item
	err := row.Scan(
		&it.ID, &it.Code, &it.AxisID, &it.PressureLevel, &it.DilemmaType,
		&it.OptionA, &it.OptionB, &it.OptionC, &it.OptionD,
		&it.Parameters.Severity, &it.Parameters.Certainty, &it.Parameters.Immediacy,
		&it.Parameters.Relationship, &it.Parameters.Consent, &it.Parameters.Reversibility,
		&it.Parameters.Legality, &it.Parameters.NumAffected,
		&it.ConsistencyGroupID, &it.MetaEthicalType, &it.ExpertDisagreement,
		&it.NonObviousFactors, &it.RequiresResidueRecognition, &it.Published,
	)
	return it, err
}

// ConsistencyGroup fetches a consistency group and the IDs of its member items.
func (db *DB) ConsistencyGroup(ctx context.Context, id string) (model.ConsistencyGroup, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM items WHERE consistency_group_id = $1 ORDER BY code`, id)
	if err != nil {
		return model.ConsistencyGroup{}, fmt.Errorf("storage: consistency group: %w", err)
	}
	defer rows.Close()

	cg := model.ConsistencyGroup{ID: id}
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			return model.ConsistencyGroup{}, fmt.Errorf("storage: scan consistency group item: %w", err)
		}
		cg.ItemIDs = append(cg.ItemIDs, itemID)
	}
	if err := rows.Err(); err != nil {
		return model.ConsistencyGroup{}, err
	}
	if len(cg.ItemIDs) == 0 {
		return model.ConsistencyGroup{}, ErrNotFound
	}
	return cg, nil
}

// ExamVersion fetches an exam version by code.
func (db *DB) ExamVersion(ctx context.Context, code string) (model.ExamVersion, error) {
	var ev model.ExamVersion
	err := db.pool.QueryRow(ctx,
		`SELECT code, items_per_axis, published FROM exam_versions WHERE code = $1`, code,
	).Scan(&ev.Code, &ev.ItemsPerAxis, &ev.Published)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ExamVersion{}, ErrNotFound
	}
	if err != nil {
		return model.ExamVersion{}, fmt.Errorf("storage: exam version: %w", err)
	}
	return ev, nil
}

// ListExamVersions returns all exam versions, ordered by code, descending.
func (db *DB) ListExamVersions(ctx context.Context) ([]model.ExamVersion, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT code, items_per_axis, published FROM exam_versions ORDER BY code DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list exam versions: %w", err)
	}
	defer rows.Close()

	var out []model.ExamVersion
	for rows.Next() {
		var ev model.ExamVersion
		if err := rows.Scan(&ev.Code, &ev.ItemsPerAxis, &ev.Published); err != nil {
			return nil, fmt.Errorf("storage: scan exam version: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
