package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/internal/service"
	"github.com/JioJio777/red-packet-fullstack/pkg/database"
)

// ClaimRepository is the append-only record store of settled claims.
type ClaimRepository struct {
	pool database.TxQuerier
}

// NewClaimRepository creates a new ClaimRepository with the given pool.
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// NewClaimRepositoryWithPool creates a new ClaimRepository with a custom pool interface.
// This is primarily used for testing.
func NewClaimRepositoryWithPool(pool database.TxQuerier) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// Insert appends a claim within a transaction.
// Returns service.ErrAlreadyClaimed if the claimant already holds a share of the packet.
func (r *ClaimRepository) Insert(ctx context.Context, tx database.TxQuerier, c *model.Claim) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO claims (red_packet_id, claimant_id, amount, claimed_at) VALUES ($1, $2, $3, $4)`,
		c.RedPacketID, c.ClaimantID, c.Amount, c.ClaimedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrAlreadyClaimed
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// Get returns the claim of claimantID on packetID, or nil, nil if there is none.
func (r *ClaimRepository) Get(ctx context.Context, tx database.TxQuerier, packetID, claimantID string) (*model.Claim, error) {
	if tx == nil {
		tx = r.pool
	}
	var c model.Claim
	err := tx.QueryRow(ctx,
		`SELECT red_packet_id, claimant_id, amount, claimed_at, settled_at
		 FROM claims WHERE red_packet_id = $1 AND claimant_id = $2`,
		packetID, claimantID).Scan(&c.RedPacketID, &c.ClaimantID, &c.Amount, &c.ClaimedAt, &c.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get claim %s/%s: %w", packetID, claimantID, err)
	}
	return &c, nil
}

// ListByPacket returns a page of claims on packetID in claim order and the
// total number of claims on it.
func (r *ClaimRepository) ListByPacket(ctx context.Context, packetID string, offset, limit int) ([]model.Claim, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE red_packet_id = $1`, packetID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count claims for packet %s: %w", packetID, err)
	}

	claims, err := r.queryClaims(ctx,
		`SELECT red_packet_id, claimant_id, amount, claimed_at, settled_at FROM claims
		 WHERE red_packet_id = $1 ORDER BY claimed_at, id LIMIT $2 OFFSET $3`,
		packetID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

// ListByClaimant returns a page of shares received by claimantID, most recent
// first, and the total number of shares they received.
func (r *ClaimRepository) ListByClaimant(ctx context.Context, claimantID string, offset, limit int) ([]model.ReceivedItem, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE claimant_id = $1`, claimantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count claims of %s: %w", claimantID, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.red_packet_id, p.sender_id, p.type, c.amount, c.claimed_at
		 FROM claims c JOIN red_packets p ON p.id = c.red_packet_id
		 WHERE c.claimant_id = $1 ORDER BY c.claimed_at DESC, c.id DESC LIMIT $2 OFFSET $3`,
		claimantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("get claims of %s: %w", claimantID, err)
	}
	defer rows.Close()

	items := []model.ReceivedItem{}
	for rows.Next() {
		var it model.ReceivedItem
		if err := rows.Scan(&it.RedPacketID, &it.SenderID, &it.Type, &it.Amount, &it.ClaimedAt); err != nil {
			return nil, 0, fmt.Errorf("scan received claim: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate claims rows: %w", err)
	}
	return items, total, nil
}

// ListUnsettled returns claims whose ledger credit has not been confirmed
// and that were claimed before olderThan. Claims are ordered by their last
// delivery attempt so a credit the ledger keeps rejecting moves to the back
// of the queue instead of filling every batch.
func (r *ClaimRepository) ListUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]model.Claim, error) {
	return r.queryClaims(ctx,
		`SELECT red_packet_id, claimant_id, amount, claimed_at, settled_at FROM claims
		 WHERE settled_at IS NULL AND claimed_at < $1
		 ORDER BY COALESCE(settle_attempted_at, claimed_at), claimed_at LIMIT $2`,
		olderThan, limit)
}

// MarkSettleAttempt records a failed credit attempt on an unsettled claim.
func (r *ClaimRepository) MarkSettleAttempt(ctx context.Context, packetID, claimantID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE claims SET settle_attempted_at = $3 WHERE red_packet_id = $1 AND claimant_id = $2 AND settled_at IS NULL`,
		packetID, claimantID, at)
	if err != nil {
		return fmt.Errorf("mark claim %s/%s attempted: %w", packetID, claimantID, err)
	}
	return nil
}

// MarkSettled stamps the ledger credit of a claim as confirmed.
func (r *ClaimRepository) MarkSettled(ctx context.Context, packetID, claimantID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE claims SET settled_at = $3 WHERE red_packet_id = $1 AND claimant_id = $2 AND settled_at IS NULL`,
		packetID, claimantID, at)
	if err != nil {
		return fmt.Errorf("mark claim %s/%s settled: %w", packetID, claimantID, err)
	}
	return nil
}

func (r *ClaimRepository) queryClaims(ctx context.Context, sql string, args ...any) ([]model.Claim, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	// Return empty slice, not nil
	claims := []model.Claim{}
	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.RedPacketID, &c.ClaimantID, &c.Amount, &c.ClaimedAt, &c.SettledAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims rows: %w", err)
	}
	return claims, nil
}
