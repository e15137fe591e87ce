// Package ledger credits and debits user balances on behalf of the engine.
//
// Every movement carries an idempotency key; applying the same key twice is a
// no-op, which is what lets the engine retry settlement at-least-once.
package ledger

import (
	"context"

	crerrors "github.com/cockroachdb/errors"
)

// Kind labels why a balance moved.
type Kind string

const (
	KindSend    Kind = "send"    // sender funds a packet
	KindReceive Kind = "receive" // claimant receives a share
	KindRefund  Kind = "refund"  // leftover of an expired packet returns to the sender
)

var (
	// ErrLedgerUnavailable marks transient failures. Callers retry.
	ErrLedgerUnavailable = crerrors.New("ledger unavailable")

	// ErrInvalidAccount is returned when the user has no account. Not retryable.
	ErrInvalidAccount = crerrors.New("invalid account")

	// ErrInsufficientBalance is returned when a debit would make a balance negative.
	ErrInsufficientBalance = crerrors.New("insufficient balance")

	// ErrInvalidEntry is returned for entries with no key or a non-positive amount.
	ErrInvalidEntry = crerrors.New("invalid ledger entry")
)

// Entry is a single balance movement.
type Entry struct {
	Key      string
	UserID   string
	Amount   int64
	Kind     Kind
	PacketID string
}

func (e Entry) validate() error {
	if e.Key == "" || e.UserID == "" || e.Amount <= 0 {
		return crerrors.WithStack(ErrInvalidEntry)
	}
	return nil
}

// Service credits accounts atomically and idempotently by Entry.Key.
type Service interface {
	Credit(ctx context.Context, e Entry) error
}

// ClaimKey is the idempotency key of the credit settling a claim.
func ClaimKey(packetID, claimantID string) string {
	return "claim:" + packetID + ":" + claimantID
}

// RefundKey is the idempotency key of the refund of an expired packet.
func RefundKey(packetID string) string {
	return "refund:" + packetID
}

// SendKey is the idempotency key of the debit funding a packet.
func SendKey(packetID string) string {
	return "send:" + packetID
}

// VoidKey is the idempotency key of the credit returning a send debit whose
// packet was never created.
func VoidKey(packetID string) string {
	return "void:" + packetID
}

// unavailable marks err as transient while keeping it as the cause.
func unavailable(err error, msg string) error {
	return crerrors.Mark(crerrors.Wrap(err, msg), ErrLedgerUnavailable)
}

// IsRetryable reports whether err was marked ErrLedgerUnavailable.
func IsRetryable(err error) bool {
	return crerrors.Is(err, ErrLedgerUnavailable)
}
