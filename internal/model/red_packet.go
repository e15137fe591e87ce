package model

import "time"

// PacketType selects the allocation policy of a red packet.
// Numeric values are part of the wire contract with the client.
type PacketType int8

const (
	PacketTypeEqual PacketType = 1
	PacketTypeLucky PacketType = 2
)

// Valid reports whether t is a known allocation policy.
func (t PacketType) Valid() bool {
	return t == PacketTypeEqual || t == PacketTypeLucky
}

func (t PacketType) String() string {
	switch t {
	case PacketTypeEqual:
		return "equal"
	case PacketTypeLucky:
		return "lucky"
	default:
		return "unknown"
	}
}

// PacketStatus is the lifecycle state of a red packet.
// Depleted and Expired are terminal.
type PacketStatus int8

const (
	PacketStatusActive   PacketStatus = 1
	PacketStatusDepleted PacketStatus = 2
	PacketStatusExpired  PacketStatus = 3
)

// Terminal reports whether no further transition can leave s.
func (s PacketStatus) Terminal() bool {
	return s == PacketStatusDepleted || s == PacketStatusExpired
}

func (s PacketStatus) String() string {
	switch s {
	case PacketStatusActive:
		return "active"
	case PacketStatusDepleted:
		return "depleted"
	case PacketStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RedPacket is a fixed-size monetary pool split into TotalCount shares.
// All amounts are integers in minor units.
type RedPacket struct {
	ID              string       `json:"id"`
	SenderID        string       `json:"sender_id"`
	Type            PacketType   `json:"type"`
	TotalAmount     int64        `json:"total_amount"`
	TotalCount      int          `json:"total_count"`
	RemainingAmount int64        `json:"remaining_amount"`
	RemainingCount  int          `json:"remaining_count"`
	Status          PacketStatus `json:"status"`
	RefundedAmount  int64        `json:"refunded_amount"`
	RefundedAt      *time.Time   `json:"-"`
	ExpiresAt       time.Time    `json:"expired_at"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ClaimedCount is the number of shares already handed out.
func (p *RedPacket) ClaimedCount() int {
	return p.TotalCount - p.RemainingCount
}

// ExpiredAt reports whether the packet deadline has passed at now.
func (p *RedPacket) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Claim is a settled share of a red packet. At most one exists per
// (RedPacketID, ClaimantID).
type Claim struct {
	RedPacketID string     `json:"red_packet_id"`
	ClaimantID  string     `json:"claimant_id"`
	Amount      int64      `json:"amount"`
	ClaimedAt   time.Time  `json:"claimed_at"`
	SettledAt   *time.Time `json:"-"`
}

// MyClaim describes the viewer's own claim on a packet.
type MyClaim struct {
	Claimed   bool       `json:"claimed"`
	Amount    int64      `json:"amount,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// RedPacketDetail is the API response DTO for GET /api/red-packets/:id
type RedPacketDetail struct {
	RedPacket
	ClaimedCount int      `json:"claimed_count"`
	MyClaim      *MyClaim `json:"my_claim"`
}

// ClaimResponse is the API response DTO for a successful claim.
type ClaimResponse struct {
	Amount    int64     `json:"amount"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// ReceivedItem is one entry of a user's received history.
type ReceivedItem struct {
	RedPacketID string     `json:"red_packet_id"`
	SenderID    string     `json:"sender_id"`
	Type        PacketType `json:"type"`
	Amount      int64      `json:"amount"`
	ClaimedAt   time.Time  `json:"claimed_at"`
}

// Page is a generic offset-paginated result.
type Page[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}

// SendRedPacketRequest is the DTO for creating a red packet.
type SendRedPacketRequest struct {
	Type        PacketType `json:"type" validate:"required,oneof=1 2"`
	TotalAmount *int64     `json:"total_amount" validate:"required,gte=1"`
	TotalCount  *int       `json:"total_count" validate:"required,gte=1,lte=100"`
}

// PageQuery is the DTO for paginated list endpoints.
type PageQuery struct {
	Page     int `query:"page" validate:"gte=1"`
	PageSize int `query:"page_size" validate:"gte=1,lte=100"`
}
