package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/veritas-labs/mse/internal/model"
)

// ListAxes returns all axes, optionally restricted to active ones.
func (db *DB) ListAxes(ctx context.Context, activeOnly bool) ([]model.Axis, error) {
	query := `SELECT id, code, name, left_pole, right_pole, category, active, tradition
	          FROM axes`
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY code"

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list axes: %w", err)
	}
	defer rows.Close()

	var axes []model.Axis
	for rows.Next() {
		var a model.Axis
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.LeftPole, &a.RightPole, &a.Category, &a.Active, &a.Tradition); err != nil {
			return nil, fmt.Errorf("storage: scan axis: %w", err)
		}
		axes = append(axes, a)
	}
	return axes, rows.Err()
}

// GetAxis fetches one axis by ID.
func (db *DB) GetAxis(ctx context.Context, id string) (model.Axis, error) {
	var a model.Axis
	err := db.pool.QueryRow(ctx,
		`SELECT id, code, name, left_pole, right_pole, category, active, tradition
		 FROM axes WHERE id = $1`, id,
	).Scan(&a.ID, &a.Code, &a.Name, &a.LeftPole, &a.RightPole, &a.Category, &a.Active, &a.Tradition)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Axis{}, ErrNotFound
	}
	if err != nil {
		return model.Axis{}, fmt.Errorf("storage: get axis: %w", err)
	}
	return a, nil
}

// GetAxisByCode fetches one axis by its stable code.
func (db *DB) GetAxisByCode(ctx context.Context, code string) (model.Axis, error) {
	var a model.Axis
	err := db.pool.QueryRow(ctx,
		`SELECT id, code, name, left_pole, right_pole, category, active, tradition
		 FROM axes WHERE code = $1`, code,
	).Scan(&a.ID, &a.Code, &a.Name, &a.LeftPole, &a.RightPole, &a.Category, &a.Active, &a.Tradition)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Axis{}, ErrNotFound
	}
	if err != nil {
		return model.Axis{}, fmt.Errorf("storage: get axis by code: %w", err)
	}
	return a, nil
}
