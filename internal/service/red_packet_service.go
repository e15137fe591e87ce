package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JioJio777/red-packet-fullstack/internal/allocation"
	"github.com/JioJio777/red-packet-fullstack/internal/cache"
	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

const (
	// MaxTotalCount is the largest number of shares a packet can be split into.
	MaxTotalCount = 100

	// MaxPageSize bounds every paginated listing.
	MaxPageSize = 100

	defaultTTL       = 24 * time.Hour
	defaultTxRetries = 3
)

// PacketRepositoryInterface defines the interface for red packet data access.
type PacketRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, p *model.RedPacket) error
	GetByID(ctx context.Context, id string) (*model.RedPacket, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.RedPacket, error)
	ApplyClaim(ctx context.Context, tx database.TxQuerier, id string, amount int64) error
	MarkExpired(ctx context.Context, tx database.TxQuerier, id string) (int64, bool, error)
	MarkRefunded(ctx context.Context, id string, at time.Time) error
	MarkRefundAttempt(ctx context.Context, id string, at time.Time) error
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListUnrefunded(ctx context.Context, limit int) ([]model.RedPacket, error)
	ListBySender(ctx context.Context, senderID string, offset, limit int) ([]model.RedPacket, int64, error)
}

// ClaimRepositoryInterface defines the interface for the claim record store.
type ClaimRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, c *model.Claim) error
	Get(ctx context.Context, tx database.TxQuerier, packetID, claimantID string) (*model.Claim, error)
	ListByPacket(ctx context.Context, packetID string, offset, limit int) ([]model.Claim, int64, error)
	ListByClaimant(ctx context.Context, claimantID string, offset, limit int) ([]model.ReceivedItem, int64, error)
	ListUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]model.Claim, error)
	MarkSettled(ctx context.Context, packetID, claimantID string, at time.Time) error
	MarkSettleAttempt(ctx context.Context, packetID, claimantID string, at time.Time) error
}

// Settler applies ledger credits at-least-once.
type Settler interface {
	Settle(ctx context.Context, e ledger.Entry) error
}

// Debiter funds a packet from the sender's balance inside the packet's
// creation transaction.
type Debiter interface {
	Debit(ctx context.Context, tx database.TxQuerier, e ledger.Entry) error
}

// ExternalDebiter funds a packet from a balance held outside the packet
// database. The debit commits on its own, so a packet that then fails to
// persist is voided with a credit.
type ExternalDebiter interface {
	Debit(ctx context.Context, e ledger.Entry) error
}

// RedPacketService is the red packet engine: it creates packets, coordinates
// claims, serves records and expires packets nobody fully claims.
type RedPacketService struct {
	pool       database.TxBeginner
	packetRepo PacketRepositoryInterface
	claimRepo  ClaimRepositoryInterface
	settler    Settler
	debiter    Debiter
	external   ExternalDebiter
	accounts   Accounts
	initial    int64
	cache      *cache.PacketCache
	rand       allocation.Source
	now        func() time.Time
	ttl        time.Duration
	txRetries  int
}

// Option configures a RedPacketService.
type Option func(*RedPacketService)

// WithDebiter makes packet creation debit the sender.
func WithDebiter(d Debiter) Option {
	return func(s *RedPacketService) { s.debiter = d }
}

// WithExternalDebiter makes packet creation debit the sender through an
// account service outside the packet database.
func WithExternalDebiter(d ExternalDebiter) Option {
	return func(s *RedPacketService) { s.external = d }
}

// WithPacketCache serves terminal packets from c.
func WithPacketCache(c *cache.PacketCache) Option {
	return func(s *RedPacketService) { s.cache = c }
}

// WithRandSource sets the source used for Lucky draws.
func WithRandSource(src allocation.Source) Option {
	return func(s *RedPacketService) { s.rand = src }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *RedPacketService) { s.now = now }
}

// WithTTL sets how long new packets stay claimable.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedPacketService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithTxRetries sets how often a transaction is retried after a
// serialization failure or deadlock.
func WithTxRetries(n int) Option {
	return func(s *RedPacketService) {
		if n >= 0 {
			s.txRetries = n
		}
	}
}

// NewRedPacketService creates a new RedPacketService with the given pool and repositories.
func NewRedPacketService(pool *pgxpool.Pool, packetRepo PacketRepositoryInterface, claimRepo ClaimRepositoryInterface, settler Settler, opts ...Option) *RedPacketService {
	return NewRedPacketServiceWithTxBeginner(pool, packetRepo, claimRepo, settler, opts...)
}

// NewRedPacketServiceWithTxBeginner creates a RedPacketService with a custom TxBeginner.
// Primarily used for testing.
func NewRedPacketServiceWithTxBeginner(pool database.TxBeginner, packetRepo PacketRepositoryInterface, claimRepo ClaimRepositoryInterface, settler Settler, opts ...Option) *RedPacketService {
	s := &RedPacketService{
		pool:       pool,
		packetRepo: packetRepo,
		claimRepo:  claimRepo,
		settler:    settler,
		rand:       allocation.DefaultSource,
		now:        time.Now,
		ttl:        defaultTTL,
		txRetries:  defaultTxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pageBounds validates a page request and converts it to offset and limit.
func pageBounds(page, pageSize int) (int, int, error) {
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, ErrInvalidRequest
	}
	return (page - 1) * pageSize, pageSize, nil
}
