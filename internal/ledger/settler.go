package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Settler retries credits with exponential backoff until they succeed, fail
// permanently, or the retry budget runs out.
type Settler struct {
	ledger          Service
	initialInterval time.Duration
	maxElapsed      time.Duration
}

// NewSettler wraps svc. A zero maxElapsed retries until ctx is done.
func NewSettler(svc Service, initialInterval, maxElapsed time.Duration) *Settler {
	if initialInterval <= 0 {
		initialInterval = 100 * time.Millisecond
	}
	return &Settler{ledger: svc, initialInterval: initialInterval, maxElapsed: maxElapsed}
}

// Settle applies e at-least-once. Safe to call again with the same entry.
func (s *Settler) Settle(ctx context.Context, e Entry) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.ledger.Credit(ctx, e)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		log.Warn().
			Err(err).
			Str("key", e.Key).
			Int("attempt", attempt).
			Msg("ledger credit failed, retrying")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	b.MaxElapsedTime = s.maxElapsed

	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
