package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// SweepResult summarizes one SweepExpired pass.
type SweepResult struct {
	Expired  int
	Refunded int
	Failed   int
}

// ReconcileResult summarizes one Reconcile pass.
type ReconcileResult struct {
	Refunds     int
	Claims      int
	Outstanding int
}

// SweepExpired moves up to batch active packets past their deadline to
// Expired and refunds each sender the unclaimed remainder. Packets that were
// depleted or already expired in the meantime are skipped.
func (s *RedPacketService) SweepExpired(ctx context.Context, batch int) (SweepResult, error) {
	var result SweepResult
	if batch < 1 {
		return result, ErrInvalidRequest
	}

	ids, err := s.packetRepo.ListExpiredActive(ctx, s.now(), batch)
	if err != nil {
		return result, fmt.Errorf("list expired red packets: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := s.expire(ctx, id)
		if err != nil {
			result.Failed++
			log.Error().Err(err).Str("packet_id", id).Msg("failed to expire red packet")
			continue
		}
		if p == nil {
			continue
		}
		result.Expired++

		if err := s.refund(ctx, p); err == nil {
			result.Refunded++
		}
	}

	if result.Expired > 0 || result.Failed > 0 {
		log.Info().
			Int("expired", result.Expired).
			Int("refunded", result.Refunded).
			Int("failed", result.Failed).
			Msg("expiry sweep finished")
	}
	return result, nil
}

// expire transitions one packet under its row lock. Returns nil when the
// packet no longer needs expiring.
func (s *RedPacketService) expire(ctx context.Context, id string) (*model.RedPacket, error) {
	var expired *model.RedPacket
	err := database.RunInTx(ctx, s.pool, s.txRetries, func(tx pgx.Tx) error {
		p, err := s.packetRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return fmt.Errorf("get red packet for update: %w", err)
		}
		if p.Status != model.PacketStatusActive || !p.ExpiredAt(s.now()) {
			return nil
		}

		refund, ok, err := s.packetRepo.MarkExpired(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		p.Status = model.PacketStatusExpired
		p.RefundedAmount = refund
		expired = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// refund returns the leftover of an expired packet to its sender and stamps
// the packet refunded. A failed attempt is stamped so the packet queues
// behind others in the next Reconcile pass.
func (s *RedPacketService) refund(ctx context.Context, p *model.RedPacket) error {
	if p.RefundedAmount > 0 && s.settler != nil {
		err := s.settler.Settle(ctx, ledger.Entry{
			Key:      ledger.RefundKey(p.ID),
			UserID:   p.SenderID,
			Amount:   p.RefundedAmount,
			Kind:     ledger.KindRefund,
			PacketID: p.ID,
		})
		if err != nil {
			event := log.Warn()
			if errors.Is(err, ErrInvalidAccount) {
				event = log.Error()
			}
			event.
				Err(err).
				Str("packet_id", p.ID).
				Str("sender_id", p.SenderID).
				Int64("amount", p.RefundedAmount).
				Msg("refund deferred")
			if err := s.packetRepo.MarkRefundAttempt(ctx, p.ID, s.now()); err != nil {
				log.Warn().Err(err).Str("packet_id", p.ID).Msg("failed to record refund attempt")
			}
			return err
		}
	}

	refundedAt := s.now()
	if err := s.packetRepo.MarkRefunded(ctx, p.ID, refundedAt); err != nil {
		log.Warn().Err(err).Str("packet_id", p.ID).Msg("failed to mark red packet refunded")
		return err
	}
	p.RefundedAt = &refundedAt

	log.Info().
		Str("packet_id", p.ID).
		Str("sender_id", p.SenderID).
		Int64("amount", p.RefundedAmount).
		Msg("red packet refunded")
	return nil
}

// Reconcile retries ledger movements that did not complete: refunds of
// expired packets and claims left unsettled for longer than grace.
func (s *RedPacketService) Reconcile(ctx context.Context, grace time.Duration, batch int) (ReconcileResult, error) {
	var result ReconcileResult
	if batch < 1 {
		return result, ErrInvalidRequest
	}

	packets, err := s.packetRepo.ListUnrefunded(ctx, batch)
	if err != nil {
		return result, fmt.Errorf("list unrefunded red packets: %w", err)
	}
	for i := range packets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.refund(ctx, &packets[i]); err != nil {
			result.Outstanding++
			continue
		}
		result.Refunds++
	}

	claims, err := s.claimRepo.ListUnsettled(ctx, s.now().Add(-grace), batch)
	if err != nil {
		return result, fmt.Errorf("list unsettled claims: %w", err)
	}
	for i := range claims {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.settleClaim(ctx, &claims[i]); err != nil {
			s.deferSettlement(ctx, &claims[i], err)
			result.Outstanding++
			continue
		}
		result.Claims++
	}

	if result.Refunds > 0 || result.Claims > 0 || result.Outstanding > 0 {
		log.Info().
			Int("refunds", result.Refunds).
			Int("claims", result.Claims).
			Int("outstanding", result.Outstanding).
			Msg("reconciliation finished")
	}
	return result, nil
}
