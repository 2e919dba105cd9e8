package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/ats/internal/models"
)

// CreateSchema inserts or replaces the scoring schema stored under version.
func (r *SQLiteRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(version) DO UPDATE SET description=excluded.description, schema_json=excluded.schema_json, updated=excluded.updated`, version, description, schemaJSON, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, version, COALESCE(description, ''), schema_json, created, updated FROM ai_schemas WHERE version = ?`, version)
	var s models.Schema
	if err := row.Scan(&s.ID, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, version, COALESCE(description, ''), schema_json, created, updated FROM ai_schemas ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		var s models.Schema
		if err := rows.Scan(&s.ID, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteSchema(ctx context.Context, version string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM ai_schemas WHERE version = ?`, version)
	return err
}
