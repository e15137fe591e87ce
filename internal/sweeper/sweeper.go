// Package sweeper periodically expires red packets past their deadline and
// retries ledger movements that did not complete.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/service"
)

// LockKey is the leader lock shared by every replica.
const LockKey = "red-packet:sweeper:lock"

// Service is the part of the engine the sweeper drives.
type Service interface {
	SweepExpired(ctx context.Context, batch int) (service.SweepResult, error)
	Reconcile(ctx context.Context, grace time.Duration, batch int) (service.ReconcileResult, error)
}

// Config tunes the sweeper.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	SettleGrace time.Duration
	LockTTL     time.Duration
}

// Sweeper runs the expiry pass on a fixed interval. At most one replica
// runs a pass at a time, and a pass never overlaps the previous one.
type Sweeper struct {
	svc    Service
	locker Locker
	cfg    Config
	cron   *gocron.Scheduler
}

// New creates a Sweeper. It does nothing until Start.
func New(svc Service, locker Locker, cfg Config) *Sweeper {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		svc:    svc,
		locker: locker,
		cfg:    cfg,
		cron:   gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the pass and returns. The first pass runs immediately.
func (s *Sweeper) Start() error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive, got %s", s.cfg.Interval)
	}

	_, err := s.cron.Every(s.cfg.Interval).SingletonMode().Do(s.tick)
	if err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cron.StartAsync()

	log.Info().
		Dur("interval", s.cfg.Interval).
		Int("batch_size", s.cfg.BatchSize).
		Msg("expiry sweeper started")
	return nil
}

// Stop cancels future passes and waits for a running one to finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
	log.Info().Msg("expiry sweeper stopped")
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
	}
}

// RunOnce performs one pass if this holder wins the lock. Losing the lock
// is not an error.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	unlock, err := s.locker.TryLock(ctx, LockKey, s.cfg.LockTTL)
	if errors.Is(err, ErrLocked) {
		log.Debug().Msg("expiry sweep skipped: another holder owns the lock")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		// Release even if the pass ran out of time.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to release sweeper lock")
		}
	}()

	if _, err := s.svc.SweepExpired(ctx, s.cfg.BatchSize); err != nil {
		return fmt.Errorf("sweep expired: %w", err)
	}
	if _, err := s.svc.Reconcile(ctx, s.cfg.SettleGrace, s.cfg.BatchSize); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}
