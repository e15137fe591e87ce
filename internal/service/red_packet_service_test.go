package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JioJio777/red-packet-fullstack/internal/ledger"
	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// mockPacketRepository is a mock implementation of PacketRepositoryInterface.
type mockPacketRepository struct {
	insertFn            func(ctx context.Context, tx database.TxQuerier, p *model.RedPacket) error
	getByIDFn           func(ctx context.Context, id string) (*model.RedPacket, error)
	getForUpdateFn      func(ctx context.Context, tx database.TxQuerier, id string) (*model.RedPacket, error)
	applyClaimFn        func(ctx context.Context, tx database.TxQuerier, id string, amount int64) error
	markExpiredFn       func(ctx context.Context, tx database.TxQuerier, id string) (int64, bool, error)
	markRefundedFn      func(ctx context.Context, id string, at time.Time) error
	markRefundAttemptFn func(ctx context.Context, id string, at time.Time) error
	listExpiredActiveFn func(ctx context.Context, now time.Time, limit int) ([]string, error)
	listUnrefundedFn    func(ctx context.Context, limit int) ([]model.RedPacket, error)
	listBySenderFn      func(ctx context.Context, senderID string, offset, limit int) ([]model.RedPacket, int64, error)
}

func (m *mockPacketRepository) Insert(ctx context.Context, tx database.TxQuerier, p *model.RedPacket) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, p)
	}
	return nil
}

func (m *mockPacketRepository) GetByID(ctx context.Context, id string) (*model.RedPacket, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPacketRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.RedPacket, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, id)
	}
	return nil, ErrNotFound
}

func (m *mockPacketRepository) ApplyClaim(ctx context.Context, tx database.TxQuerier, id string, amount int64) error {
	if m.applyClaimFn != nil {
		return m.applyClaimFn(ctx, tx, id, amount)
	}
	return nil
}

func (m *mockPacketRepository) MarkExpired(ctx context.Context, tx database.TxQuerier, id string) (int64, bool, error) {
	if m.markExpiredFn != nil {
		return m.markExpiredFn(ctx, tx, id)
	}
	return 0, false, nil
}

func (m *mockPacketRepository) MarkRefunded(ctx context.Context, id string, at time.Time) error {
	if m.markRefundedFn != nil {
		return m.markRefundedFn(ctx, id, at)
	}
	return nil
}

func (m *mockPacketRepository) MarkRefundAttempt(ctx context.Context, id string, at time.Time) error {
	if m.markRefundAttemptFn != nil {
		return m.markRefundAttemptFn(ctx, id, at)
	}
	return nil
}

func (m *mockPacketRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if m.listExpiredActiveFn != nil {
		return m.listExpiredActiveFn(ctx, now, limit)
	}
	return []string{}, nil
}

func (m *mockPacketRepository) ListUnrefunded(ctx context.Context, limit int) ([]model.RedPacket, error) {
	if m.listUnrefundedFn != nil {
		return m.listUnrefundedFn(ctx, limit)
	}
	return []model.RedPacket{}, nil
}

func (m *mockPacketRepository) ListBySender(ctx context.Context, senderID string, offset, limit int) ([]model.RedPacket, int64, error) {
	if m.listBySenderFn != nil {
		return m.listBySenderFn(ctx, senderID, offset, limit)
	}
	return []model.RedPacket{}, 0, nil
}

// mockClaimRepository is a mock implementation of ClaimRepositoryInterface.
type mockClaimRepository struct {
	insertFn         func(ctx context.Context, tx database.TxQuerier, c *model.Claim) error
	getFn            func(ctx context.Context, tx database.TxQuerier, packetID, claimantID string) (*model.Claim, error)
	listByPacketFn   func(ctx context.Context, packetID string, offset, limit int) ([]model.Claim, int64, error)
	listByClaimantFn func(ctx context.Context, claimantID string, offset, limit int) ([]model.ReceivedItem, int64, error)
	listUnsettledFn  func(ctx context.Context, olderThan time.Time, limit int) ([]model.Claim, error)
	markSettledFn    func(ctx context.Context, packetID, claimantID string, at time.Time) error
	markAttemptFn    func(ctx context.Context, packetID, claimantID string, at time.Time) error
}

func (m *mockClaimRepository) Insert(ctx context.Context, tx database.TxQuerier, c *model.Claim) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, c)
	}
	return nil
}

func (m *mockClaimRepository) Get(ctx context.Context, tx database.TxQuerier, packetID, claimantID string) (*model.Claim, error) {
	if m.getFn != nil {
		return m.getFn(ctx, tx, packetID, claimantID)
	}
	return nil, nil
}

func (m *mockClaimRepository) ListByPacket(ctx context.Context, packetID string, offset, limit int) ([]model.Claim, int64, error) {
	if m.listByPacketFn != nil {
		return m.listByPacketFn(ctx, packetID, offset, limit)
	}
	return []model.Claim{}, 0, nil
}

func (m *mockClaimRepository) ListByClaimant(ctx context.Context, claimantID string, offset, limit int) ([]model.ReceivedItem, int64, error) {
	if m.listByClaimantFn != nil {
		return m.listByClaimantFn(ctx, claimantID, offset, limit)
	}
	return []model.ReceivedItem{}, 0, nil
}

func (m *mockClaimRepository) ListUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]model.Claim, error) {
	if m.listUnsettledFn != nil {
		return m.listUnsettledFn(ctx, olderThan, limit)
	}
	return []model.Claim{}, nil
}

func (m *mockClaimRepository) MarkSettled(ctx context.Context, packetID, claimantID string, at time.Time) error {
	if m.markSettledFn != nil {
		return m.markSettledFn(ctx, packetID, claimantID, at)
	}
	return nil
}

func (m *mockClaimRepository) MarkSettleAttempt(ctx context.Context, packetID, claimantID string, at time.Time) error {
	if m.markAttemptFn != nil {
		return m.markAttemptFn(ctx, packetID, claimantID, at)
	}
	return nil
}

// mockSettler records every entry it is asked to settle.
type mockSettler struct {
	mu       sync.Mutex
	entries  []ledger.Entry
	settleFn func(ctx context.Context, e ledger.Entry) error
}

func (m *mockSettler) Settle(ctx context.Context, e ledger.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	if m.settleFn != nil {
		return m.settleFn(ctx, e)
	}
	return nil
}

func (m *mockSettler) settled() []ledger.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Entry(nil), m.entries...)
}

// mockDebiter is a mock implementation of Debiter.
type mockDebiter struct {
	debitFn func(ctx context.Context, tx database.TxQuerier, e ledger.Entry) error
}

func (m *mockDebiter) Debit(ctx context.Context, tx database.TxQuerier, e ledger.Entry) error {
	if m.debitFn != nil {
		return m.debitFn(ctx, tx, e)
	}
	return nil
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of database.TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// memStore backs both repository mocks with shared in-memory state so that
// a sequence of claims behaves like it would against the database. A mutex
// stands in for the row lock.
type memStore struct {
	mu      sync.Mutex
	packets map[string]*model.RedPacket
	claims  []model.Claim
}

func newMemStore(packets ...*model.RedPacket) *memStore {
	st := &memStore{packets: map[string]*model.RedPacket{}}
	for _, p := range packets {
		st.packets[p.ID] = p
	}
	return st
}

// txBeginner holds the store lock for the lifetime of each transaction.
func (st *memStore) txBeginner() *mockTxBeginner {
	return &mockTxBeginner{
		beginFn: func(ctx context.Context) (pgx.Tx, error) {
			st.mu.Lock()
			done := false
			release := func(context.Context) error {
				if !done {
					done = true
					st.mu.Unlock()
				}
				return nil
			}
			return &mockTx{commitFn: release, rollbackFn: release}, nil
		},
	}
}

func (st *memStore) packetRepo() *mockPacketRepository {
	return &mockPacketRepository{
		getForUpdateFn: func(ctx context.Context, tx database.TxQuerier, id string) (*model.RedPacket, error) {
			p, ok := st.packets[id]
			if !ok {
				return nil, ErrNotFound
			}
			cp := *p
			return &cp, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*model.RedPacket, error) {
			st.mu.Lock()
			defer st.mu.Unlock()
			p, ok := st.packets[id]
			if !ok {
				return nil, nil
			}
			cp := *p
			return &cp, nil
		},
		applyClaimFn: func(ctx context.Context, tx database.TxQuerier, id string, amount int64) error {
			p := st.packets[id]
			p.RemainingAmount -= amount
			p.RemainingCount--
			if p.RemainingCount == 0 {
				p.Status = model.PacketStatusDepleted
			}
			return nil
		},
		markExpiredFn: func(ctx context.Context, tx database.TxQuerier, id string) (int64, bool, error) {
			p := st.packets[id]
			if p.Status != model.PacketStatusActive || p.RemainingCount == 0 {
				return 0, false, nil
			}
			p.Status = model.PacketStatusExpired
			p.RefundedAmount = p.RemainingAmount
			return p.RefundedAmount, true, nil
		},
	}
}

func (st *memStore) claimRepo() *mockClaimRepository {
	return &mockClaimRepository{
		getFn: func(ctx context.Context, tx database.TxQuerier, packetID, claimantID string) (*model.Claim, error) {
			for _, c := range st.claims {
				if c.RedPacketID == packetID && c.ClaimantID == claimantID {
					cp := c
					return &cp, nil
				}
			}
			return nil, nil
		},
		insertFn: func(ctx context.Context, tx database.TxQuerier, c *model.Claim) error {
			st.claims = append(st.claims, *c)
			return nil
		},
	}
}

// claimedTotal sums every recorded claim on packetID.
func (st *memStore) claimedTotal(packetID string) (int64, int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var total int64
	n := 0
	for _, c := range st.claims {
		if c.RedPacketID == packetID {
			total += c.Amount
			n++
		}
	}
	return total, n
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func int64Ptr(i int64) *int64 {
	return &i
}

func intPtr(i int) *int {
	return &i
}

func activePacket(id string, typ model.PacketType, amount int64, count int, expiresAt time.Time) *model.RedPacket {
	return &model.RedPacket{
		ID:              id,
		SenderID:        "sender",
		Type:            typ,
		TotalAmount:     amount,
		TotalCount:      count,
		RemainingAmount: amount,
		RemainingCount:  count,
		Status:          model.PacketStatusActive,
		ExpiresAt:       expiresAt,
		CreatedAt:       expiresAt.Add(-24 * time.Hour),
	}
}
