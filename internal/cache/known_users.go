package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// KnownUsers remembers which callers already have an account so that
// provisioning runs once per user per ttl rather than on every request.
type KnownUsers struct {
	c *gocache.Cache
}

// NewKnownUsers creates a set whose members are forgotten after ttl.
func NewKnownUsers(ttl, cleanupInterval time.Duration) *KnownUsers {
	return &KnownUsers{c: gocache.New(ttl, cleanupInterval)}
}

// Seen reports whether userID was marked within the ttl.
func (k *KnownUsers) Seen(userID string) bool {
	_, ok := k.c.Get(userID)
	return ok
}

// Mark records userID as provisioned.
func (k *KnownUsers) Mark(userID string) {
	k.c.SetDefault(userID, struct{}{})
}
