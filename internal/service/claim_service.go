package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/allocation"
	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// Claim atomically hands the next share of a packet to claimantID.
// Uses SELECT FOR UPDATE to serialize claims on the same packet.
// Returns:
//   - ErrNotFound if the packet doesn't exist
//   - ErrAlreadyClaimed if the user already holds a share of this packet
//   - ErrPacketDepleted or ErrPacketExpired (both ErrPacketNotActive) if
//     the packet can no longer be claimed
//
// Once the claim is committed it is not rolled back, even if ctx is
// cancelled or the ledger credit fails afterwards.
func (s *RedPacketService) Claim(ctx context.Context, packetID, claimantID string) (*model.Claim, error) {
	if packetID == "" || claimantID == "" {
		return nil, ErrInvalidRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A claim that reached the database must finish; the caller going away
	// no longer matters.
	txCtx := context.WithoutCancel(ctx)

	var (
		claim     *model.Claim
		depleted  bool
		remaining int
	)
	err := database.RunInTx(txCtx, s.pool, s.txRetries, func(tx pgx.Tx) error {
		// 1. Lock the packet row (SELECT FOR UPDATE)
		p, err := s.packetRepo.GetForUpdate(txCtx, tx, packetID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("get red packet for update: %w", err)
		}

		// 2. A previous winner is told so, whatever the packet state is now
		existing, err := s.claimRepo.Get(txCtx, tx, packetID, claimantID)
		if err != nil {
			return fmt.Errorf("get existing claim: %w", err)
		}
		if existing != nil {
			return ErrAlreadyClaimed
		}

		// 3. Check the packet is still claimable
		now := s.now()
		switch {
		case p.Status == model.PacketStatusDepleted || p.RemainingCount <= 0:
			return ErrPacketDepleted
		case p.Status == model.PacketStatusExpired || p.ExpiredAt(now):
			return ErrPacketExpired
		}

		// 4. Draw the share
		amount, err := allocation.Next(p, s.rand)
		if err != nil {
			return fmt.Errorf("allocate share: %w", err)
		}

		// 5. Insert claim (UNIQUE constraint catches concurrent duplicates)
		c := &model.Claim{
			RedPacketID: packetID,
			ClaimantID:  claimantID,
			Amount:      amount,
			ClaimedAt:   now,
		}
		if err := s.claimRepo.Insert(txCtx, tx, c); err != nil {
			if errors.Is(err, ErrAlreadyClaimed) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("insert claim: %w", err)
		}

		// 6. Move the counters
		if err := s.packetRepo.ApplyClaim(txCtx, tx, packetID, amount); err != nil {
			return fmt.Errorf("apply claim: %w", err)
		}

		claim = c
		remaining = p.RemainingCount - 1
		depleted = remaining == 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("packet_id", packetID).
		Str("claimant_id", claimantID).
		Int64("amount", claim.Amount).
		Int("remaining_count", remaining).
		Bool("depleted", depleted).
		Msg("red packet claimed")

	s.settleOrDefer(txCtx, claim)
	return claim, nil
}

// settleOrDefer credits a fresh claim. A failure leaves the claim unsettled
// for Reconcile.
func (s *RedPacketService) settleOrDefer(ctx context.Context, c *model.Claim) {
	if err := s.settleClaim(ctx, c); err != nil {
		s.deferSettlement(ctx, c, err)
	}
}

// settleClaim credits the claimant and stamps the claim settled.
func (s *RedPacketService) settleClaim(ctx context.Context, c *model.Claim) error {
	if s.settler == nil {
		return nil
	}

	err := s.settler.Settle(ctx, ledger.Entry{
		Key:      ledger.ClaimKey(c.RedPacketID, c.ClaimantID),
		UserID:   c.ClaimantID,
		Amount:   c.Amount,
		Kind:     ledger.KindReceive,
		PacketID: c.RedPacketID,
	})
	if err != nil {
		return fmt.Errorf("credit claim: %w", err)
	}

	settledAt := s.now()
	if err := s.claimRepo.MarkSettled(ctx, c.RedPacketID, c.ClaimantID, settledAt); err != nil {
		return err
	}
	c.SettledAt = &settledAt
	return nil
}

// deferSettlement logs a failed settlement and stamps the attempt so the
// claim queues behind others in the next Reconcile pass.
func (s *RedPacketService) deferSettlement(ctx context.Context, c *model.Claim, err error) {
	event := log.Warn()
	if errors.Is(err, ErrInvalidAccount) {
		event = log.Error()
	}
	event.
		Err(err).
		Str("packet_id", c.RedPacketID).
		Str("claimant_id", c.ClaimantID).
		Int64("amount", c.Amount).
		Msg("claim settlement deferred")

	if err := s.claimRepo.MarkSettleAttempt(ctx, c.RedPacketID, c.ClaimantID, s.now()); err != nil {
		log.Warn().
			Err(err).
			Str("packet_id", c.RedPacketID).
			Str("claimant_id", c.ClaimantID).
			Msg("failed to record settlement attempt")
	}
}
