// Package db provides the shared Postgres pool abstraction and bulk
// copy helpers used by the Postgres result store.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/resilience"
)

// Pool is the subset of *pgxpool.Pool the store needs. pgxmock's pool
// interface satisfies it, which keeps store tests database-free.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// Connect opens a pgx pool for the given connection string. The
// initial ping is retried with backoff so a run started alongside the
// database does not fail before it accepts connections.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "db: connect")
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = func(attempt int, pingErr error) {
		zap.L().Warn("db: ping failed, retrying",
			zap.Int("attempt", attempt), zap.Error(pingErr))
	}
	if err := resilience.Do(ctx, cfg, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}

// CopyFromSchema bulk-inserts rows into a schema-qualified table using
// the PostgreSQL COPY protocol. This is the fastest way to insert
// large volumes of data.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}
	return n, nil
}
