package service

import (
	"context"
	"fmt"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

// ListRecords returns a page of the claims on a packet in claim order,
// together with the number of claims in total.
// Returns ErrNotFound if the packet doesn't exist.
func (s *RedPacketService) ListRecords(ctx context.Context, packetID string, page, pageSize int) (*model.Page[model.Claim], error) {
	offset, limit, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, packetID); err != nil {
		return nil, err
	}

	claims, total, err := s.claimRepo.ListByPacket(ctx, packetID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list claim records: %w", err)
	}
	return &model.Page[model.Claim]{List: claims, Total: total}, nil
}

// ListReceived returns a page of the shares claimantID received, most
// recent first.
func (s *RedPacketService) ListReceived(ctx context.Context, claimantID string, page, pageSize int) (*model.Page[model.ReceivedItem], error) {
	offset, limit, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}
	if claimantID == "" {
		return nil, ErrInvalidRequest
	}

	items, total, err := s.claimRepo.ListByClaimant(ctx, claimantID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list received red packets: %w", err)
	}
	return &model.Page[model.ReceivedItem]{List: items, Total: total}, nil
}
