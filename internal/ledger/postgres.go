package ledger

import (
	"context"
	"errors"

	crerrors "github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// Pool is the subset of pgxpool.Pool the Postgres ledger uses.
type Pool interface {
	database.TxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres keeps balances in the accounts table and every movement in the
// append-only ledger_entries table.
type Postgres struct {
	pool Pool
}

// NewPostgres creates a Postgres ledger on the given pool.
func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Credit adds e.Amount to the user's balance once per e.Key.
func (l *Postgres) Credit(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return unavailable(err, "begin ledger tx")
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	applied, err := l.apply(ctx, tx, e, e.Amount)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable(err, "commit ledger tx")
	}

	if applied {
		log.Debug().
			Str("key", e.Key).
			Str("user_id", e.UserID).
			Int64("amount", e.Amount).
			Str("kind", string(e.Kind)).
			Msg("ledger credit applied")
	}
	return nil
}

// Debit removes e.Amount from the user's balance inside the caller's
// transaction, so funding a packet commits or rolls back with the packet.
func (l *Postgres) Debit(ctx context.Context, tx database.TxQuerier, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	_, err := l.apply(ctx, tx, e, -e.Amount)
	return err
}

// apply records the entry and moves the balance by delta. It reports false
// when the key was already applied.
func (l *Postgres) apply(ctx context.Context, q database.TxQuerier, e Entry, delta int64) (bool, error) {
	tag, err := q.Exec(ctx,
		`INSERT INTO ledger_entries (key, user_id, kind, amount, packet_id) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO NOTHING`,
		e.Key, e.UserID, string(e.Kind), delta, e.PacketID)
	if err != nil {
		return false, unavailable(err, "insert ledger entry")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	var balance int64
	err = q.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = NOW()
		 WHERE user_id = $1 AND balance + $2 >= 0
		 RETURNING balance`,
		e.UserID, delta).Scan(&balance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, unavailable(err, "update balance")
		}
		exists, existsErr := l.accountExists(ctx, q, e.UserID)
		if existsErr != nil {
			return false, existsErr
		}
		if !exists {
			return false, crerrors.Wrapf(ErrInvalidAccount, "user %s", e.UserID)
		}
		return false, crerrors.Wrapf(ErrInsufficientBalance, "user %s", e.UserID)
	}

	if _, err := q.Exec(ctx, `UPDATE ledger_entries SET balance_after = $2 WHERE key = $1`, e.Key, balance); err != nil {
		return false, unavailable(err, "record balance after")
	}
	return true, nil
}

func (l *Postgres) accountExists(ctx context.Context, q database.TxQuerier, userID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, unavailable(err, "check account")
	}
	return exists, nil
}

// OpenAccount creates an account with an initial balance. Opening an
// existing account leaves it untouched.
func (l *Postgres) OpenAccount(ctx context.Context, userID string, initial int64) error {
	if userID == "" || initial < 0 {
		return crerrors.WithStack(ErrInvalidEntry)
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, initial)
	if err != nil {
		return unavailable(err, "open account")
	}
	return nil
}

// Balance returns the current balance of userID.
func (l *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, crerrors.Wrapf(ErrInvalidAccount, "user %s", userID)
		}
		return 0, unavailable(err, "get balance")
	}
	return balance, nil
}
