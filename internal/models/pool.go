package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PoolStatus is the lifecycle state of a pool.
type PoolStatus string

const (
	PoolActive    PoolStatus = "active"
	PoolCompleted PoolStatus = "completed"
	PoolPaused    PoolStatus = "paused"
)

// MemberRole distinguishes pool administrators from regular members.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// MemberStatus tracks where a member is in the payout rotation.
type MemberStatus string

const (
	MemberActive MemberStatus = "active"
	// MemberCurrent marks the member whose payout is in flight or due.
	MemberCurrent MemberStatus = "current"
	// MemberCompleted marks a member who has received their payout.
	MemberCompleted MemberStatus = "completed"
)

// Pool is the aggregate root for one rotating savings group.
// Members contribute ContributionAmount each round; the member whose
// Position equals CurrentRound receives the pooled payout for that round.
type Pool struct {
	// ID is the unique identifier for the pool (UUID format).
	ID string

	// Name is the display name of the pool (e.g., "Familia Reyes 2026").
	Name string

	// ContributionAmount is the fixed per-round contribution in cents.
	ContributionAmount int64

	// CurrentRound is the 1-based round in progress. Never exceeds the
	// member count; the final payout completes the pool instead.
	CurrentRound int

	// TotalAmount is the running collected balance in cents. Contributions
	// add to it when they settle; payouts subtract from it.
	TotalAmount int64

	// Status is the pool lifecycle state. Pools are never deleted, only
	// completed or paused.
	Status PoolStatus

	// Members is the ordered payout rotation.
	Members []PoolMember

	// Transactions is the append-only ledger of contribution and payout
	// events for this pool.
	Transactions []PoolTransaction

	// CreatedAt is the Unix timestamp when the pool was created.
	CreatedAt int64
}

// PoolMember is one participant in a pool's rotation. Members are embedded
// in their pool; there are no external references into this list.
type PoolMember struct {
	// UserID references the member's user account.
	UserID string

	// Name is the member's display name, denormalized for ledger display.
	Name string

	// Role is admin or member. Only admins may capture escrow or trigger
	// payouts.
	Role MemberRole

	// Position is the 1-based payout order, unique within the pool.
	Position int

	// Status tracks the member's place in the rotation.
	Status MemberStatus

	// PayoutReceived is set when this member's payout settles. Terminal:
	// it is never reset once true.
	PayoutReceived bool
}

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxContribution TransactionType = "contribution"
	TxPayout       TransactionType = "payout"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
)

// PoolTransaction is one entry in a pool's ledger.
type PoolTransaction struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	// UserID is the member the money moved for.
	UserID string

	// MemberName is the member's display name at the time of the entry.
	MemberName string

	// Type is contribution or payout.
	Type TransactionType

	// Amount is the entry amount in cents.
	Amount int64

	// Round is the pool round the entry belongs to.
	Round int

	// Status is pending until the underlying payment settles.
	Status TransactionStatus

	// PaymentID links the entry to the Payment that moved the money.
	PaymentID string

	// CreatedAt is the Unix timestamp when the entry was appended.
	CreatedAt int64
}

// NewPool validates and builds a pool in round 1 with an empty ledger.
// The member list must have unique positions covering 1..len(members) and
// exactly one admin; the position-1 member starts as the current recipient.
func NewPool(name string, contributionAmount int64, members []PoolMember) (*Pool, error) {
	if name == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	if contributionAmount <= 0 {
		return nil, fmt.Errorf("contribution amount must be positive")
	}
	if len(members) < 2 {
		return nil, fmt.Errorf("pool needs at least 2 members, got %d", len(members))
	}

	seen := make(map[int]bool, len(members))
	admins := 0
	for i := range members {
		m := &members[i]
		if m.UserID == "" || m.Name == "" {
			return nil, fmt.Errorf("member %d missing user id or name", i)
		}
		if m.Position < 1 || m.Position > len(members) {
			return nil, fmt.Errorf("member %q position %d out of range 1..%d", m.Name, m.Position, len(members))
		}
		if seen[m.Position] {
			return nil, fmt.Errorf("duplicate payout position %d", m.Position)
		}
		seen[m.Position] = true
		if m.Role == RoleAdmin {
			admins++
		}
		m.PayoutReceived = false
		if m.Position == 1 {
			m.Status = MemberCurrent
		} else {
			m.Status = MemberActive
		}
	}
	if admins != 1 {
		return nil, fmt.Errorf("pool needs exactly one admin, got %d", admins)
	}

	return &Pool{
		ID:                 uuid.New().String(),
		Name:               name,
		ContributionAmount: contributionAmount,
		CurrentRound:       1,
		TotalAmount:        0,
		Status:             PoolActive,
		Members:            members,
		CreatedAt:          time.Now().Unix(),
	}, nil
}

// Member returns the member with the given user id, or nil.
func (p *Pool) Member(userID string) *PoolMember {
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			return &p.Members[i]
		}
	}
	return nil
}

// IsAdmin reports whether the given user is an admin member of the pool.
func (p *Pool) IsAdmin(userID string) bool {
	m := p.Member(userID)
	return m != nil && m.Role == RoleAdmin
}

// Recipient returns the member whose position matches the current round,
// or nil if the rotation is inconsistent.
func (p *Pool) Recipient() *PoolMember {
	for i := range p.Members {
		if p.Members[i].Position == p.CurrentRound {
			return &p.Members[i]
		}
	}
	return nil
}
