package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

func TestPacketCache_StoresTerminalOnly(t *testing.T) {
	pc := NewPacketCache(time.Minute, time.Minute)

	active := &model.RedPacket{ID: "a", Status: model.PacketStatusActive}
	depleted := &model.RedPacket{ID: "d", Status: model.PacketStatusDepleted}
	expired := &model.RedPacket{ID: "e", Status: model.PacketStatusExpired}

	assert.False(t, pc.Put(active))
	assert.True(t, pc.Put(depleted))
	assert.True(t, pc.Put(expired))
	assert.False(t, pc.Put(nil))

	_, ok := pc.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, pc.Len())
}

func TestPacketCache_ReturnsCopy(t *testing.T) {
	pc := NewPacketCache(time.Minute, time.Minute)
	pc.Put(&model.RedPacket{ID: "d", Status: model.PacketStatusDepleted, TotalAmount: 300})

	got, ok := pc.Get("d")
	require.True(t, ok)
	got.TotalAmount = 1

	again, ok := pc.Get("d")
	require.True(t, ok)
	assert.Equal(t, int64(300), again.TotalAmount)
}

func TestPacketCache_WaitsForRefundStamp(t *testing.T) {
	pc := NewPacketCache(time.Minute, time.Minute)
	pending := &model.RedPacket{ID: "e", Status: model.PacketStatusExpired, RefundedAmount: 200}

	assert.False(t, pc.Put(pending), "an expired packet with an outstanding refund can still change")
	_, ok := pc.Get("e")
	assert.False(t, ok)

	refundedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	pending.RefundedAt = &refundedAt
	require.True(t, pc.Put(pending))

	got, ok := pc.Get("e")
	require.True(t, ok)
	require.NotNil(t, got.RefundedAt)
	assert.Equal(t, refundedAt, *got.RefundedAt)
}
