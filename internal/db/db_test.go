package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/ats/internal/db"
)

func memDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if d.GetConn() == nil {
		t.Fatalf("expected non-nil sql.DB from GetConn")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestExec_QueryRow(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`); err != nil {
		t.Fatalf("Exec create table returned error: %v", err)
	}

	res, err := d.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "foo")
	if err != nil {
		t.Fatalf("Exec insert returned error: %v", err)
	}
	lastID, err := res.LastInsertId()
	if err != nil || lastID == 0 {
		t.Fatalf("LastInsertId = %d, %v", lastID, err)
	}

	var name string
	if err := d.QueryRow(ctx, `SELECT name FROM items WHERE id = ?`, lastID).Scan(&name); err != nil {
		t.Fatalf("QueryRow scan returned error: %v", err)
	}
	if name != "foo" {
		t.Fatalf("expected name 'foo' got %q", name)
	}

	rows, err := d.QueryRows(ctx, `SELECT id FROM items`)
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	d.GetConn().SetMaxOpenConns(1)

	if _, err := d.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('lost')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('kept')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}

	var names []string
	rows, err := d.QueryRows(ctx, `SELECT name FROM items`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, s)
	}
	if len(names) != 1 || names[0] != "kept" {
		t.Fatalf("expected only committed row, got %v", names)
	}
}

func TestNew_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	var on int
	if err := d.QueryRow(ctx, `PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", on)
	}
}

func TestNew_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dbpkg.New(ctx, memDSN(t), nil); err == nil {
		t.Fatalf("expected ping to fail on cancelled context")
	}
}
