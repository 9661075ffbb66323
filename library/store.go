package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// store is the query plumbing shared by every repository. q is either the
// pool or a transaction; forUpdate is set inside PostgreSQL write
// transactions so point reads take row locks.
type store struct {
	q         sqlx.ExtContext
	dialect   Dialect
	builder   goqu.DialectWrapper
	forUpdate bool
}

func (s store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s store) selectRows(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// selectDataset runs a goqu query with bind parameters in the store's dialect.
func (s store) selectDataset(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, s.q, dest, query, args...)
}

// lockSuffix returns the row-locking clause for point reads that precede a write.
func (s store) lockSuffix() string {
	if s.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// notFound maps sql.ErrNoRows to sentinel and wraps anything else with op.
func notFound(op string, err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}
