package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

// ErrAccountsDisabled is returned by account operations when no account
// store is configured.
var ErrAccountsDisabled = errors.New("accounts are not managed by this service")

// Accounts opens and reads user balances.
type Accounts interface {
	OpenAccount(ctx context.Context, userID string, initial int64) error
	Balance(ctx context.Context, userID string) (int64, error)
}

// WithAccounts lets the service provision accounts, opening each new one
// with initialBalance.
func WithAccounts(a Accounts, initialBalance int64) Option {
	return func(s *RedPacketService) {
		s.accounts = a
		if initialBalance > 0 {
			s.initial = initialBalance
		}
	}
}

// EnsureAccount opens userID's account if it does not exist yet.
func (s *RedPacketService) EnsureAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidRequest
	}
	if s.accounts == nil {
		return ErrAccountsDisabled
	}
	if err := s.accounts.OpenAccount(ctx, userID, s.initial); err != nil {
		return fmt.Errorf("open account: %w", err)
	}
	return nil
}

// Profile returns userID and their current balance, opening the account on
// first use.
func (s *RedPacketService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if err := s.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}

	balance, err := s.accounts.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	log.Debug().Str("user_id", userID).Int64("balance", balance).Msg("profile read")
	return &model.Profile{UserID: userID, Balance: balance}, nil
}
