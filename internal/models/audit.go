package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the payment flows.
const (
	AuditPaymentInitiated       = "payment_initiated"
	AuditPaymentEscrowInitiated = "payment_escrow_initiated"
	AuditEscrowReleased         = "escrow_released"
	AuditPoolPayout             = "pool_payout"
	AuditConnectAccountCreated  = "connect_account_created"
)

// AuditEntry is an immutable record of a sensitive action. Entries are
// appended alongside the operation and never mutated or deleted.
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	PoolID    string
	PaymentID string

	// Detail is a JSON blob with action-specific metadata (amounts,
	// transfer ids, failure reasons).
	Detail string

	// Success records whether the action completed. Failures are audited
	// too, so compensated payout attempts remain visible.
	Success bool

	CreatedAt int64
}

// NewAuditEntry builds an audit record for the given actor and action.
func NewAuditEntry(actorID, action string, success bool) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Success:   success,
		CreatedAt: time.Now().Unix(),
	}
}
