// Package cache keeps in-process snapshots of red packets that can no longer change.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
)

// PacketCache holds terminal (depleted or expired) packets only, so a cached
// snapshot is never stale with respect to its counters. An expired packet is
// held only once its refund is stamped.
type PacketCache struct {
	c *gocache.Cache
}

// NewPacketCache creates a cache whose entries live for ttl.
func NewPacketCache(ttl, cleanupInterval time.Duration) *PacketCache {
	return &PacketCache{c: gocache.New(ttl, cleanupInterval)}
}

// Get returns a copy of the cached packet.
func (pc *PacketCache) Get(id string) (*model.RedPacket, bool) {
	v, ok := pc.c.Get(id)
	if !ok {
		return nil, false
	}
	p := v.(model.RedPacket)
	return &p, true
}

// Put stores p if it is terminal and reports whether it was stored.
func (pc *PacketCache) Put(p *model.RedPacket) bool {
	if p == nil || !p.Status.Terminal() {
		return false
	}
	if p.Status == model.PacketStatusExpired && p.RefundedAmount > 0 && p.RefundedAt == nil {
		return false
	}
	pc.c.SetDefault(p.ID, *p)
	return true
}

// Len is the number of cached packets, expired entries included until cleanup.
func (pc *PacketCache) Len() int {
	return pc.c.ItemCount()
}
