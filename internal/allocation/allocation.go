// Package allocation splits a red packet pool into shares.
//
// Everything here is pure integer arithmetic. Randomness comes from an
// injected Source so draws are reproducible under test.
package allocation

import (
	"errors"
	"math/rand/v2"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

// MinShare is the smallest amount any recipient can receive.
const MinShare int64 = 1

// ErrInvalidAllocationRequest is returned when the pool cannot give every
// share at least MinShare.
var ErrInvalidAllocationRequest = errors.New("invalid allocation request")

// Source yields uniform integers in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	Int64N(n int64) int64
}

type globalSource struct{}

func (globalSource) Int64N(n int64) int64 { return rand.Int64N(n) }

// DefaultSource is safe for concurrent use.
var DefaultSource Source = globalSource{}

// Allocate returns totalCount ordered shares summing exactly to totalAmount.
// Lucky shares are produced by successive Draw calls, the same sequence a
// packet yields when claimed one recipient at a time.
func Allocate(totalAmount int64, totalCount int, policy model.PacketType, src Source) ([]int64, error) {
	if totalCount < 1 || totalAmount < int64(totalCount)*MinShare {
		return nil, ErrInvalidAllocationRequest
	}
	if src == nil {
		src = DefaultSource
	}

	shares := make([]int64, totalCount)
	switch policy {
	case model.PacketTypeEqual:
		for i := range shares {
			shares[i] = EqualShare(totalAmount, totalCount, i)
		}
	case model.PacketTypeLucky:
		remainingAmount := totalAmount
		for i := range shares {
			share, err := Draw(remainingAmount, totalCount-i, src)
			if err != nil {
				return nil, err
			}
			shares[i] = share
			remainingAmount -= share
		}
	default:
		return nil, ErrInvalidAllocationRequest
	}
	return shares, nil
}

// EqualShare is the fixed share at position index of an Equal packet.
// The first total%count positions receive one extra unit.
func EqualShare(totalAmount int64, totalCount, index int) int64 {
	n := int64(totalCount)
	base := totalAmount / n
	if int64(index) < totalAmount%n {
		return base + 1
	}
	return base
}

// Draw picks the next Lucky share from what is left of a pool.
//
// The share is uniform in [1, 2*average], clamped so every still-unclaimed
// share can receive MinShare. The last draw takes the whole remainder.
func Draw(remainingAmount int64, remainingCount int, src Source) (int64, error) {
	if remainingCount < 1 || remainingAmount < int64(remainingCount)*MinShare {
		return 0, ErrInvalidAllocationRequest
	}
	if remainingCount == 1 {
		return remainingAmount, nil
	}
	if src == nil {
		src = DefaultSource
	}

	n := int64(remainingCount)
	upper := remainingAmount / n * 2
	if upper < MinShare {
		upper = MinShare
	}
	share := src.Int64N(upper) + MinShare

	if ceiling := remainingAmount - (n-1)*MinShare; share > ceiling {
		share = ceiling
	}
	if share < MinShare {
		share = MinShare
	}
	return share, nil
}

// Next returns the share for the next claimant of p, given its current
// counters. It does not mutate p.
func Next(p *model.RedPacket, src Source) (int64, error) {
	if p.RemainingCount < 1 {
		return 0, ErrInvalidAllocationRequest
	}
	switch p.Type {
	case model.PacketTypeEqual:
		share := EqualShare(p.TotalAmount, p.TotalCount, p.ClaimedCount())
		if p.RemainingCount == 1 {
			// Equal shares already sum to the total; this only differs if the
			// counters were written by something other than the claim path.
			share = p.RemainingAmount
		}
		if share < MinShare || share > p.RemainingAmount {
			return 0, ErrInvalidAllocationRequest
		}
		return share, nil
	case model.PacketTypeLucky:
		return Draw(p.RemainingAmount, p.RemainingCount, src)
	default:
		return 0, ErrInvalidAllocationRequest
	}
}
