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

const packetColumns = `id, sender_id, type, total_amount, total_count, remaining_amount, remaining_count,
	status, refunded_amount, refunded_at, expires_at, created_at`

// PacketRepository provides data access for red packets using pgx.
type PacketRepository struct {
	pool database.TxQuerier
}

// NewPacketRepository creates a new PacketRepository with the given pool.
func NewPacketRepository(pool *pgxpool.Pool) *PacketRepository {
	return &PacketRepository{pool: pool}
}

// NewPacketRepositoryWithPool creates a new PacketRepository with a custom pool interface.
// This is primarily used for testing.
func NewPacketRepositoryWithPool(pool database.TxQuerier) *PacketRepository {
	return &PacketRepository{pool: pool}
}

func scanPacket(row pgx.Row) (*model.RedPacket, error) {
	var p model.RedPacket
	err := row.Scan(
		&p.ID,
		&p.SenderID,
		&p.Type,
		&p.TotalAmount,
		&p.TotalCount,
		&p.RemainingAmount,
		&p.RemainingCount,
		&p.Status,
		&p.RefundedAmount,
		&p.RefundedAt,
		&p.ExpiresAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert inserts a new red packet, inside tx when the caller funds it in the
// same transaction.
func (r *PacketRepository) Insert(ctx context.Context, tx database.TxQuerier, p *model.RedPacket) error {
	if tx == nil {
		tx = r.pool
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO red_packets (id, sender_id, type, total_amount, total_count, remaining_amount,
			remaining_count, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SenderID, p.Type, p.TotalAmount, p.TotalCount, p.RemainingAmount,
		p.RemainingCount, p.Status, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert red packet: %w", err)
	}
	return nil
}

// GetByID retrieves a red packet by id.
// Returns nil, nil if the packet is not found (service layer handles this).
func (r *PacketRepository) GetByID(ctx context.Context, id string) (*model.RedPacket, error) {
	p, err := scanPacket(r.pool.QueryRow(ctx, `SELECT `+packetColumns+` FROM red_packets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get red packet %s: %w", id, err)
	}
	return p, nil
}

// GetForUpdate retrieves a red packet with a row lock (SELECT FOR UPDATE).
// The lock is held until the transaction completes and is the only
// serialization point between claims and the expiry sweeper.
// Returns service.ErrNotFound if the packet doesn't exist.
func (r *PacketRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.RedPacket, error) {
	p, err := scanPacket(tx.QueryRow(ctx, `SELECT `+packetColumns+` FROM red_packets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("get red packet for update %s: %w", id, err)
	}
	return p, nil
}

// ApplyClaim takes one share of amount from the packet counters and flips it
// to depleted when the last share is taken. Must be called within a
// transaction after locking the row.
func (r *PacketRepository) ApplyClaim(ctx context.Context, tx database.TxQuerier, id string, amount int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE red_packets
		 SET remaining_amount = remaining_amount - $2,
		     remaining_count = remaining_count - 1,
		     status = CASE WHEN remaining_count - 1 = 0 THEN $3 ELSE status END
		 WHERE id = $1 AND status = $4 AND remaining_count > 0 AND remaining_amount >= $2`,
		id, amount, model.PacketStatusDepleted, model.PacketStatusActive)
	if err != nil {
		return fmt.Errorf("apply claim to %s: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("apply claim to %s: counters changed under lock", id)
	}
	return nil
}

// MarkExpired transitions an active packet with unclaimed shares to expired
// and records its leftover as the refund. Returns the refund and whether the
// transition happened. Must be called after locking the row.
func (r *PacketRepository) MarkExpired(ctx context.Context, tx database.TxQuerier, id string) (int64, bool, error) {
	var refund int64
	err := tx.QueryRow(ctx,
		`UPDATE red_packets
		 SET status = $2, refunded_amount = remaining_amount
		 WHERE id = $1 AND status = $3 AND remaining_count > 0
		 RETURNING refunded_amount`,
		id, model.PacketStatusExpired, model.PacketStatusActive).Scan(&refund)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("mark red packet %s expired: %w", id, err)
	}
	return refund, true, nil
}

// MarkRefunded stamps the refund of an expired packet as settled.
func (r *PacketRepository) MarkRefunded(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE red_packets SET refunded_at = $2 WHERE id = $1 AND refunded_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark red packet %s refunded: %w", id, err)
	}
	return nil
}

// ListExpiredActive returns ids of active packets whose deadline is at or
// before now, oldest deadline first.
func (r *PacketRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM red_packets WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at LIMIT $3`,
		model.PacketStatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired red packets: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan red packet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate red packet rows: %w", err)
	}
	return ids, nil
}

// ListUnrefunded returns expired packets whose refund has not been settled,
// least recently attempted first.
func (r *PacketRepository) ListUnrefunded(ctx context.Context, limit int) ([]model.RedPacket, error) {
	return r.queryPackets(ctx,
		`SELECT `+packetColumns+` FROM red_packets
		 WHERE status = $1 AND refunded_amount > 0 AND refunded_at IS NULL
		 ORDER BY COALESCE(refund_attempted_at, expires_at), expires_at LIMIT $2`,
		model.PacketStatusExpired, limit)
}

// MarkRefundAttempt records a failed refund attempt on an expired packet.
func (r *PacketRepository) MarkRefundAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE red_packets SET refund_attempted_at = $2 WHERE id = $1 AND refunded_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark red packet %s refund attempted: %w", id, err)
	}
	return nil
}

// ListBySender returns a page of packets sent by senderID, most recent first,
// and the total number of packets they sent.
func (r *PacketRepository) ListBySender(ctx context.Context, senderID string, offset, limit int) ([]model.RedPacket, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM red_packets WHERE sender_id = $1`, senderID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count red packets of %s: %w", senderID, err)
	}

	packets, err := r.queryPackets(ctx,
		`SELECT `+packetColumns+` FROM red_packets WHERE sender_id = $1
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		senderID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return packets, total, nil
}

func (r *PacketRepository) queryPackets(ctx context.Context, sql string, args ...any) ([]model.RedPacket, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query red packets: %w", err)
	}
	defer rows.Close()

	packets := []model.RedPacket{}
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan red packet: %w", err)
		}
		packets = append(packets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate red packet rows: %w", err)
	}
	return packets, nil
}
