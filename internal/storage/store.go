// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/arosales/juntas-seguras/internal/models"
)

// Sentinel errors the service layer branches on. Everything else a store
// returns is an internal failure.
var (
	// ErrPayoutAlreadyReceived is returned by BeginPayout when the round's
	// payout is already reserved or settled. This is the authoritative
	// double-payout defense: concurrent requests for the same round race on
	// the reservation insert, and exactly one wins; the rest fail here,
	// before any money moves.
	ErrPayoutAlreadyReceived = errors.New("recipient has already received a payout for this round")

	// ErrInvalidTransition is returned when a payment status update finds
	// the row outside the expected source state. Payment transitions are
	// forward-only; a completed payment never goes back to pending.
	ErrInvalidTransition = errors.New("payment is not in a state that allows this transition")
)

// Store defines the persistence interface for the settlement workflows.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByStripeAccount(ctx context.Context, accountID string) (*models.User, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	SetConnectAccount(ctx context.Context, userID, accountID string) error
	SetConnectStatus(ctx context.Context, userID string, payoutsEnabled, detailsSubmitted bool) error

	// Pools. GetPool loads the full aggregate: members ordered by position
	// and the complete transaction ledger.
	CreatePool(ctx context.Context, pool *models.Pool) error
	GetPool(ctx context.Context, poolID string) (*models.Pool, error)

	// Payments.
	CreatePayment(ctx context.Context, payment *models.Payment) error
	// CreatePaymentWithLedger inserts the payment and its pending ledger
	// entry in one transaction, so intent creation never leaves one
	// without the other.
	CreatePaymentWithLedger(ctx context.Context, payment *models.Payment, entry *models.PoolTransaction) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error)

	// Contribution settlement. CompleteContribution moves a pending
	// contribution payment to completed, marks its ledger entry completed,
	// and adds the amount to the pool balance. FailPayment marks the
	// payment failed and leaves the ledger entry pending.
	CompleteContribution(ctx context.Context, paymentID string) error
	FailPayment(ctx context.Context, paymentID string) error

	// ReleaseEscrow moves an escrow payment to released, records who
	// released it, marks the ledger entry completed, and adds the amount
	// to the pool balance.
	ReleaseEscrow(ctx context.Context, paymentID, releasedBy string) error

	// Payout saga. BeginPayout atomically marks the recipient in flight
	// and reserves the round's payout; at most one non-failed payout
	// payment can exist per pool round, so a second request fails with
	// ErrPayoutAlreadyReceived even while the first transfer is still in
	// flight. Returns the recipient's prior status for compensation. The
	// caller commits this before touching the payment processor.
	BeginPayout(ctx context.Context, poolID, recipientUserID string, payment *models.Payment) (models.MemberStatus, error)
	// CompensatePayout reverses BeginPayout after a failed transfer:
	// payment to failed, recipient back to its prior status.
	CompensatePayout(ctx context.Context, paymentID, poolID, recipientUserID string, prevStatus models.MemberStatus) error
	// CompletePayout applies the success mutations in one transaction:
	// payment completed with the transfer id, pool balance decremented,
	// completed ledger entry appended, recipient marked paid, and the
	// round advanced (or the pool completed on the final round).
	CompletePayout(ctx context.Context, poolID, paymentID, transferID string) error

	// Audit sink. Append-only.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error

	// Idempotency-key cache for mutating payment routes.
	GetIdempotencyKey(ctx context.Context, key string) (status int, body []byte, ok bool, err error)
	PutIdempotencyKey(ctx context.Context, key string, status int, body []byte) error

	// Close releases any resources held by the store.
	Close() error
}
