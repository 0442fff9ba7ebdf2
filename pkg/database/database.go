package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations shared by pools and transactions,
// letting repositories run the same query either way.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionManager abstracts transaction creation so domain services
// don't depend on a concrete pool.
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// lockNotAvailable is the Postgres SQLSTATE reported when lock_timeout
// expires while waiting on a row lock.
const lockNotAvailable = "55P03"

// IsLockTimeout reports whether err is a lock_timeout expiry, i.e. another
// transaction held the row lock for longer than the configured bound.
func IsLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable
}
