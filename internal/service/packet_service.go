package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// Create creates a red packet from the request using the configured TTL.
// Returns ErrInvalidRequest if request data is nil, incomplete or out of range.
func (s *RedPacketService) Create(ctx context.Context, senderID string, req *model.SendRedPacketRequest) (*model.RedPacket, error) {
	// Defense-in-depth: check for nil pointers even though handler validates
	if req == nil || req.TotalAmount == nil || req.TotalCount == nil {
		return nil, ErrInvalidRequest
	}
	return s.CreatePacket(ctx, senderID, req.Type, *req.TotalAmount, *req.TotalCount, s.ttl)
}

// CreatePacket validates and persists a new active packet expiring after ttl.
// When a Debiter is configured the sender is charged totalAmount in the same
// transaction. An ExternalDebiter charges the sender before the packet is
// stored and is credited back if storing fails. ErrInsufficientBalance and
// ErrInvalidAccount come from the debit.
func (s *RedPacketService) CreatePacket(ctx context.Context, senderID string, typ model.PacketType, totalAmount int64, totalCount int, ttl time.Duration) (*model.RedPacket, error) {
	switch {
	case senderID == "":
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidRequest)
	case !typ.Valid():
		return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidRequest, typ)
	case totalCount < 1 || totalCount > MaxTotalCount:
		return nil, fmt.Errorf("%w: total_count must be between 1 and %d", ErrInvalidRequest, MaxTotalCount)
	case totalAmount < 1:
		return nil, fmt.Errorf("%w: total_amount must be at least 1", ErrInvalidRequest)
	case totalAmount < int64(totalCount):
		return nil, fmt.Errorf("%w: total_amount must be at least total_count", ErrInvalidRequest)
	case ttl <= 0:
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidRequest)
	}

	now := s.now()
	p := &model.RedPacket{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		Type:            typ,
		TotalAmount:     totalAmount,
		TotalCount:      totalCount,
		RemainingAmount: totalAmount,
		RemainingCount:  totalCount,
		Status:          model.PacketStatusActive,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
	}

	funding := ledger.Entry{
		Key:      ledger.SendKey(p.ID),
		UserID:   senderID,
		Amount:   totalAmount,
		Kind:     ledger.KindSend,
		PacketID: p.ID,
	}
	if s.external != nil {
		if err := s.external.Debit(ctx, funding); err != nil {
			return nil, fmt.Errorf("fund red packet: %w", err)
		}
	}

	err := database.RunInTx(ctx, s.pool, s.txRetries, func(tx pgx.Tx) error {
		if s.debiter != nil {
			if err := s.debiter.Debit(ctx, tx, funding); err != nil {
				return fmt.Errorf("fund red packet: %w", err)
			}
		}
		return s.packetRepo.Insert(ctx, tx, p)
	})
	if err != nil {
		if s.external != nil {
			s.voidFunding(context.WithoutCancel(ctx), funding)
		}
		return nil, err
	}

	log.Info().
		Str("packet_id", p.ID).
		Str("sender_id", senderID).
		Str("type", typ.String()).
		Int64("total_amount", totalAmount).
		Int("total_count", totalCount).
		Time("expires_at", p.ExpiresAt).
		Msg("red packet created")

	return p, nil
}

// voidFunding credits back an external debit whose packet was never stored.
func (s *RedPacketService) voidFunding(ctx context.Context, funding ledger.Entry) {
	void := funding
	void.Key = ledger.VoidKey(funding.PacketID)
	void.Kind = ledger.KindRefund

	if s.settler == nil {
		log.Error().
			Str("packet_id", funding.PacketID).
			Str("sender_id", funding.UserID).
			Int64("amount", funding.Amount).
			Msg("red packet funding not returned: no settler configured")
		return
	}
	if err := s.settler.Settle(ctx, void); err != nil {
		log.Error().
			Err(err).
			Str("packet_id", funding.PacketID).
			Str("sender_id", funding.UserID).
			Str("key", void.Key).
			Int64("amount", funding.Amount).
			Msg("failed to return red packet funding")
		return
	}
	log.Warn().
		Str("packet_id", funding.PacketID).
		Str("sender_id", funding.UserID).
		Int64("amount", funding.Amount).
		Msg("red packet not created, funding returned")
}

// Get retrieves a red packet by id.
// Returns ErrNotFound if the packet doesn't exist.
func (s *RedPacketService) Get(ctx context.Context, id string) (*model.RedPacket, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(id); ok {
			return p, nil
		}
	}

	p, err := s.packetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get red packet: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}

	if s.cache != nil {
		s.cache.Put(p)
	}
	return p, nil
}

// Detail retrieves a red packet together with the viewer's own claim.
func (s *RedPacketService) Detail(ctx context.Context, id, viewerID string) (*model.RedPacketDetail, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.RedPacketDetail{
		RedPacket:    *p,
		ClaimedCount: p.ClaimedCount(),
		MyClaim:      &model.MyClaim{Claimed: false},
	}
	if viewerID == "" {
		return detail, nil
	}

	c, err := s.claimRepo.Get(ctx, nil, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("get viewer claim: %w", err)
	}
	if c != nil {
		claimedAt := c.ClaimedAt
		detail.MyClaim = &model.MyClaim{Claimed: true, Amount: c.Amount, ClaimedAt: &claimedAt}
	}
	return detail, nil
}

// ListSent returns the packets senderID created, most recent first.
func (s *RedPacketService) ListSent(ctx context.Context, senderID string, page, pageSize int) (*model.Page[model.RedPacket], error) {
	offset, limit, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}
	if senderID == "" {
		return nil, ErrInvalidRequest
	}

	packets, total, err := s.packetRepo.ListBySender(ctx, senderID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent red packets: %w", err)
	}
	return &model.Page[model.RedPacket]{List: packets, Total: total}, nil
}

// isNotFound reports whether err is a repository not-found signal.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
