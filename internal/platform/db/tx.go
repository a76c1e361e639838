package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// serializationRetries bounds how often an aborted repeatable-read
// transaction is re-run before the error surfaces to the caller.
const serializationRetries = 1

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level. Any error returned by fn rolls the whole unit back. A
// transaction Postgres aborts with a serialization failure is re-run once.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return Retry(ctx, func() error {
		return runTx(ctx, pool, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// Retry runs attempt, re-running it when the whole unit failed with a
// retryable serialization error. Callers that manage their own BeginTx
// wrap the begin-to-commit span in attempt.
func Retry(ctx context.Context, attempt func() error) error {
	err := attempt()
	for i := 0; i < serializationRetries && IsSerializationFailure(err); i++ {
		if ctx.Err() != nil {
			return err
		}
		err = attempt()
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a PostgreSQL
// serialization failure (SQLSTATE 40001) or deadlock (40P01). Both mean
// concurrent repeatable-read transactions collided and the unit is safe
// to re-run.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
