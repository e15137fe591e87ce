package service

import (
	"errors"

	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
)

var (
	// ErrInvalidRequest is returned when request data is malformed or out of range
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when a red packet cannot be found
	ErrNotFound = errors.New("red packet not found")

	// ErrPacketNotActive is returned when a red packet is depleted or expired
	ErrPacketNotActive = errors.New("red packet is not active")

	// ErrPacketDepleted refines ErrPacketNotActive: every share has been claimed
	ErrPacketDepleted = &notActiveError{msg: "red packet is empty"}

	// ErrPacketExpired refines ErrPacketNotActive: the deadline has passed
	ErrPacketExpired = &notActiveError{msg: "red packet is expired"}

	// ErrAlreadyClaimed is returned when a user attempts to claim a packet twice
	ErrAlreadyClaimed = errors.New("red packet already claimed by user")

	// ErrInsufficientBalance is returned when the sender cannot fund a packet
	ErrInsufficientBalance = ledger.ErrInsufficientBalance

	// ErrInvalidAccount is returned when the ledger has no account for a user
	ErrInvalidAccount = ledger.ErrInvalidAccount
)

// notActiveError lets callers match either the precise reason or the
// general ErrPacketNotActive kind.
type notActiveError struct {
	msg string
}

func (e *notActiveError) Error() string { return e.msg }

func (e *notActiveError) Is(target error) bool { return target == ErrPacketNotActive }
