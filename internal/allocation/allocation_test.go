package allocation

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

// fixedSource returns the same value (clamped into range) on every call.
type fixedSource struct {
	v int64
}

func (f fixedSource) Int64N(n int64) int64 {
	if f.v >= n {
		return n - 1
	}
	return f.v
}

func sum(shares []int64) int64 {
	var total int64
	for _, s := range shares {
		total += s
	}
	return total
}

func TestAllocate_Equal_Remainder(t *testing.T) {
	shares, err := Allocate(1000, 3, model.PacketTypeEqual, nil)

	require.NoError(t, err)
	assert.Equal(t, []int64{334, 333, 333}, shares)
	assert.Equal(t, int64(1000), sum(shares))
}

func TestAllocate_Equal_Even(t *testing.T) {
	shares, err := Allocate(300, 3, model.PacketTypeEqual, nil)

	require.NoError(t, err)
	assert.Equal(t, []int64{100, 100, 100}, shares)
}

func TestAllocate_Equal_OneUnitEach(t *testing.T) {
	shares, err := Allocate(100, 100, model.PacketTypeEqual, nil)

	require.NoError(t, err)
	for _, s := range shares {
		assert.Equal(t, int64(1), s)
	}
}

func TestAllocate_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		count  int
		policy model.PacketType
	}{
		{"amount below count", 2, 3, model.PacketTypeEqual},
		{"zero count", 100, 0, model.PacketTypeLucky},
		{"negative count", 100, -1, model.PacketTypeEqual},
		{"zero amount", 0, 1, model.PacketTypeLucky},
		{"unknown policy", 100, 2, model.PacketType(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Allocate(tt.amount, tt.count, tt.policy, nil)
			assert.Nil(t, shares)
			assert.True(t, errors.Is(err, ErrInvalidAllocationRequest))
		})
	}
}

func TestAllocate_Lucky_Bounds(t *testing.T) {
	const (
		total = int64(1000)
		count = 5
	)
	for seed := uint64(0); seed < 500; seed++ {
		src := rand.New(rand.NewPCG(seed, seed*31+7))
		shares, err := Allocate(total, count, model.PacketTypeLucky, src)
		require.NoError(t, err)
		require.Len(t, shares, count)

		var cumulative int64
		for k, s := range shares {
			assert.GreaterOrEqual(t, s, int64(1), "seed %d share %d", seed, k)
			assert.LessOrEqual(t, s, total, "seed %d share %d", seed, k)
			cumulative += s
			assert.LessOrEqual(t, cumulative, total-int64(count-(k+1)), "seed %d after %d draws", seed, k+1)
		}
		assert.Equal(t, total, cumulative, "seed %d", seed)
	}
}

func TestAllocate_Lucky_MinimumPool(t *testing.T) {
	src := rand.New(rand.NewPCG(1, 2))
	shares, err := Allocate(10, 10, model.PacketTypeLucky, src)

	require.NoError(t, err)
	for _, s := range shares {
		assert.Equal(t, int64(1), s)
	}
}

func TestDraw_LastTakesRemainder(t *testing.T) {
	share, err := Draw(777, 1, fixedSource{v: 0})

	require.NoError(t, err)
	assert.Equal(t, int64(777), share)
}

func TestDraw_ClampsToReserve(t *testing.T) {
	// 2*average = 2*(10/3) = 6 -> max draw 6, ceiling = 10-2 = 8, no clamp
	share, err := Draw(10, 3, fixedSource{v: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(6), share)

	// 2*average = 2*(3/2) = 2, ceiling = 3-1 = 2
	share, err = Draw(3, 2, fixedSource{v: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(2), share)

	// pool exactly equals count, every draw must be 1
	share, err = Draw(4, 4, fixedSource{v: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), share)
}

func TestDraw_SmallestDraw(t *testing.T) {
	share, err := Draw(1000, 5, fixedSource{v: 0})

	require.NoError(t, err)
	assert.Equal(t, int64(1), share)
}

func TestDraw_Invalid(t *testing.T) {
	_, err := Draw(2, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidAllocationRequest)

	_, err = Draw(5, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidAllocationRequest)
}

func TestNext_EqualFollowsClaimOrder(t *testing.T) {
	p := &model.RedPacket{
		Type:            model.PacketTypeEqual,
		TotalAmount:     1000,
		TotalCount:      3,
		RemainingAmount: 1000,
		RemainingCount:  3,
	}

	var got []int64
	for p.RemainingCount > 0 {
		share, err := Next(p, nil)
		require.NoError(t, err)
		got = append(got, share)
		p.RemainingAmount -= share
		p.RemainingCount--
	}

	assert.Equal(t, []int64{334, 333, 333}, got)
	assert.Equal(t, int64(0), p.RemainingAmount)
}

func TestNext_LuckyConserves(t *testing.T) {
	src := rand.New(rand.NewPCG(42, 42))
	p := &model.RedPacket{
		Type:            model.PacketTypeLucky,
		TotalAmount:     500,
		TotalCount:      7,
		RemainingAmount: 500,
		RemainingCount:  7,
	}

	var claimed int64
	for p.RemainingCount > 0 {
		share, err := Next(p, src)
		require.NoError(t, err)
		require.GreaterOrEqual(t, share, int64(1))
		claimed += share
		p.RemainingAmount -= share
		p.RemainingCount--
		assert.Equal(t, p.TotalAmount, claimed+p.RemainingAmount)
	}
	assert.Equal(t, int64(0), p.RemainingAmount)
}

func TestNext_Exhausted(t *testing.T) {
	p := &model.RedPacket{Type: model.PacketTypeEqual, TotalAmount: 10, TotalCount: 2}

	_, err := Next(p, nil)
	assert.ErrorIs(t, err, ErrInvalidAllocationRequest)
}
