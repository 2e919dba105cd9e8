// Package mock holds in-memory repository fakes for handler tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	imodels "github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

var (
	_ repository.UserRepo     = (*UserRepo)(nil)
	_ repository.SchemaRepo   = (*SchemaRepo)(nil)
	_ repository.TemplateRepo = (*TemplateRepo)(nil)
)

// Test helpers and mocks
type Mocks struct {
	Users     *UserRepo
	Schemas   *SchemaRepo
	Templates *TemplateRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Users:     &UserRepo{},
		Schemas:   &SchemaRepo{},
		Templates: &TemplateRepo{},
	}
}

type UserRepo struct {
	mu        sync.Mutex
	Stored    []models.User
	CreateErr error
}

func (m *UserRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	for _, s := range m.Stored {
		if strings.EqualFold(s.Email, u.Email) {
			return 0, fmt.Errorf("user %s: %w", u.Email, repository.ErrDuplicate)
		}
	}
	u.ID = int64(len(m.Stored) + 1)
	m.Stored = append(m.Stored, *u)
	return u.ID, nil
}

func (m *UserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stored {
		if m.Stored[i].ID == id {
			u := m.Stored[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (m *UserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stored {
		if strings.EqualFold(m.Stored[i].Email, email) {
			u := m.Stored[i]
			return &u, nil
		}
	}
	return nil, nil
}

type SchemaRepo struct {
	mu   sync.Mutex
	rows map[string]imodels.Schema
}

func (m *SchemaRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]imodels.Schema{}
	}
	id := int64(len(m.rows) + 1)
	if old, ok := m.rows[version]; ok {
		id = old.ID
	}
	m.rows[version] = imodels.Schema{ID: id, Version: version, Description: description, SchemaJSON: schemaJSON}
	return id, nil
}

func (m *SchemaRepo) GetSchemaByVersion(ctx context.Context, version string) (*imodels.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[version]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *SchemaRepo) ListSchemas(ctx context.Context) ([]imodels.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]imodels.Schema, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *SchemaRepo) DeleteSchema(ctx context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, version)
	return nil
}

type TemplateRepo struct {
	mu   sync.Mutex
	rows map[string]imodels.Template
}

func templateKey(name, version string) string { return name + "@" + version }

func (m *TemplateRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]imodels.Template{}
	}
	id := int64(len(m.rows) + 1)
	if old, ok := m.rows[templateKey(name, version)]; ok {
		id = old.ID
	}
	m.rows[templateKey(name, version)] = imodels.Template{ID: id, Name: name, Version: version, TemplateTxt: templateText, SchemaVer: schemaVersion, Metadata: metadata}
	return id, nil
}

func (m *TemplateRepo) GetTemplate(ctx context.Context, name, version string) (*imodels.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[templateKey(name, version)]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *TemplateRepo) ListTemplates(ctx context.Context) ([]imodels.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]imodels.Template, 0, len(m.rows))
	for _, t := range m.rows {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return templateKey(out[i].Name, out[i].Version) < templateKey(out[j].Name, out[j].Version) })
	return out, nil
}

func (m *TemplateRepo) DeleteTemplate(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, templateKey(name, version))
	return nil
}
