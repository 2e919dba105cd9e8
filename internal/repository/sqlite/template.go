package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/ats/internal/models"
)

func (r *SQLiteRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error) {
	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, schema_version=excluded.schema_version, metadata=excluded.metadata, updated=excluded.updated`, name, version, templateText, schemaVersion, metadata, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteRepo) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM ai_templates ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteTemplate(ctx context.Context, name, version string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	return err
}

func scanTemplate(s scanner) (*models.Template, error) {
	var t models.Template
	var schemaVer, meta sql.NullString
	if err := s.Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &schemaVer, &meta, &t.Created, &t.Updated); err != nil {
		return nil, err
	}
	if schemaVer.Valid {
		v := schemaVer.String
		t.SchemaVer = &v
	}
	if meta.Valid {
		v := meta.String
		t.Metadata = &v
	}
	return &t, nil
}
