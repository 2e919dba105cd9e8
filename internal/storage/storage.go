// Package storage keeps resume files on the local filesystem under opaque
// locators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a locator no longer resolves.
var ErrNotFound = errors.New("resume not found")

// FS stores files flat in dir. A locator is "<uuid><ext>".
type FS struct {
	dir string
}

// NewFS creates dir if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FS{dir: dir}, nil
}

// Store writes data and returns its locator. ext is kept as a suffix, e.g. ".pdf".
func (s *FS) Store(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext = strings.ToLower(ext)
	if ext != "" && !validExt(ext) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}

	locator := uuid.NewString() + ext
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write resume: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close resume: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, locator)); err != nil {
		return "", fmt.Errorf("commit resume: %w", err)
	}

	return locator, nil
}

// Load returns the bytes stored under locator.
func (s *FS) Load(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", locator, ErrNotFound)
	}
	return b, err
}

// Delete removes the file under locator. Missing files are not an error.
func (s *FS) Delete(ctx context.Context, locator string) error {
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// path resolves a locator, rejecting anything that is not a bare uuid name.
func (s *FS) path(locator string) (string, error) {
	ext := filepath.Ext(locator)
	if _, err := uuid.Parse(strings.TrimSuffix(locator, ext)); err != nil || (ext != "" && !validExt(ext)) {
		return "", fmt.Errorf("invalid locator %q: %w", locator, ErrNotFound)
	}
	return filepath.Join(s.dir, locator), nil
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
