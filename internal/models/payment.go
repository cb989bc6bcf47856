package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentType classifies what a payment moves money for.
type PaymentType string

const (
	// PaymentContribution is an immediate-capture member contribution.
	PaymentContribution PaymentType = "contribution"
	// PaymentEscrow is a contribution authorized and held until an admin
	// releases it.
	PaymentEscrow PaymentType = "escrow"
	// PaymentPayout is a transfer of the pooled funds to the round's
	// recipient.
	PaymentPayout PaymentType = "payout"
)

// PaymentStatus is the settlement state of a payment. Transitions are
// forward-only: pending is the sole non-terminal state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	// PaymentCompleted means the money moved (capture settled or transfer
	// succeeded).
	PaymentCompleted PaymentStatus = "completed"
	// PaymentReleased means an escrow hold was captured by an admin.
	PaymentReleased PaymentStatus = "released"
	PaymentFailed   PaymentStatus = "failed"
)

// Payment represents one money movement. Payments are never deleted; failed
// and terminal rows stay behind as the audit trail for reconciliation.
type Payment struct {
	// PaymentID is the opaque unique identifier, "pay_" + UUID.
	PaymentID string

	// UserID is the payer (contributions/escrow) or payee (payouts).
	UserID string

	// PoolID scopes the payment to a pool. Empty for standalone payments.
	PoolID string

	// Amount is the payment amount in cents.
	Amount int64

	Type   PaymentType
	Status PaymentStatus

	// StripePaymentIntentID is set for contributions and escrow holds.
	StripePaymentIntentID string

	// StripeTransferID is set once a payout transfer succeeds.
	StripeTransferID string

	// Round is the pool round the payment belongs to (0 if not pool-scoped).
	Round int

	// ReleaseDate is the intended escrow release time (Unix), 0 otherwise.
	ReleaseDate int64

	// ReleasedBy and ReleasedAt record the admin who captured an escrow
	// hold and when.
	ReleasedBy string
	ReleasedAt int64

	CreatedAt int64
	UpdatedAt int64
}

// NewPaymentID returns a fresh opaque payment identifier.
func NewPaymentID() string {
	return "pay_" + uuid.New().String()
}

// NewPayment validates and builds a payment in pending state.
func NewPayment(userID, poolID string, amount int64, typ PaymentType, round int) (*Payment, error) {
	if userID == "" {
		return nil, fmt.Errorf("payment requires a user id")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", amount)
	}
	switch typ {
	case PaymentContribution, PaymentEscrow, PaymentPayout:
	default:
		return nil, fmt.Errorf("unknown payment type %q", typ)
	}
	now := time.Now().Unix()
	return &Payment{
		PaymentID: NewPaymentID(),
		UserID:    userID,
		PoolID:    poolID,
		Amount:    amount,
		Type:      typ,
		Status:    PaymentPending,
		Round:     round,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Terminal reports whether the payment has reached a final status.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentPending
}
