package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const (
	pgErrCodeUniqueViolation      = "23505"
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"

	txRetryInterval    = 10 * time.Millisecond
	txMaxRetryInterval = 250 * time.Millisecond
)

// TxBeginner is implemented by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation
}

// IsRetryableTxError reports whether a transaction failed only because it
// lost a race with another transaction and can be run again.
func IsRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgErrCodeSerializationFailure || pgErr.Code == pgErrCodeDeadlockDetected
}

// RunInTx runs fn in a transaction and commits it. fn is run again, up to
// maxRetries times, when the transaction hits a serialization failure or a
// deadlock. Retries back off exponentially from txRetryInterval with jitter
// so that colliding transactions spread out.
func RunInTx(ctx context.Context, db TxBeginner, maxRetries int, fn func(tx pgx.Tx) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = txRetryInterval
	exp.MaxInterval = txMaxRetryInterval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)

	attempt := 0
	run := func() error {
		attempt++
		err := runOnce(ctx, db, fn)
		if err != nil && !IsRetryableTxError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("next_retry_in", next).
			Msg("transaction conflict, retrying")
	}

	err := backoff.RetryNotify(run, b, notify)
	if err != nil && IsRetryableTxError(err) {
		return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, err)
	}
	return err
}

func runOnce(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
