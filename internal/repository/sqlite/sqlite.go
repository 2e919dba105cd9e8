package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/ats/internal/db"
	"github.com/garnizeh/ats/pkg/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
// A repo returned to an InTx callback is bound to that transaction.
type SQLiteRepo struct {
	conn   *db.DB
	q      querier
	tx     *sql.Tx
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.Store = (*SQLiteRepo)(nil)
var _ repository.SchemaRepo = (*SQLiteRepo)(nil)
var _ repository.TemplateRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, q: conn.GetConn(), logger: logger}
}

// InTx runs fn with a repo bound to one transaction. Nested calls reuse the
// outer transaction. A write lock that stays busy past the timeout surfaces as
// repository.ErrConflict.
func (r *SQLiteRepo) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if r.tx != nil {
		return fn(r)
	}
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&SQLiteRepo{conn: r.conn, q: tx, tx: tx, logger: r.logger})
	})
	if isBusy(err) && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: %w", repository.ErrConflict, err)
	}
	return err
}

// atomic runs fn on the current transaction, or on a fresh one when the repo
// is not transaction-bound.
func (r *SQLiteRepo) atomic(ctx context.Context, fn func(q querier) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
