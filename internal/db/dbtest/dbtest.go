// Package dbtest opens isolated, fully migrated databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	dbfs "github.com/garnizeh/ats/db"
	"github.com/garnizeh/ats/internal/db"
)

var seq atomic.Int64

// Open returns a migrated in-memory database unique to t. It is closed when
// the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	d, err := db.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	// a single connection keeps shared-cache table locks out of the way
	d.GetConn().SetMaxOpenConns(1)

	return migrate(t, d)
}

// OpenFile returns a migrated WAL database file in a temp dir with the default
// connection pool, for tests that need real concurrent writers.
func OpenFile(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.New(context.Background(), filepath.Join(t.TempDir(), "ats.db"), nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	return migrate(t, d)
}

func migrate(t testing.TB, d *db.DB) *db.DB {
	t.Helper()
	if err := db.Migrate(context.Background(), d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return d
}
