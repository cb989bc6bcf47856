package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Beyond identity it carries the
// Stripe ids that make the user a payer (customer) and, once onboarded,
// a payee (Connect account).
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is shown in pool member lists and ledgers.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// StripeCustomerID is the payer identity, created lazily on the first
	// contribution.
	StripeCustomerID string

	// StripeAccountID is the Connect payee account id, empty until the
	// user starts onboarding.
	StripeAccountID string

	// PayoutsEnabled mirrors the Connect account's payout capability.
	// Gates payout eligibility; refreshed from Stripe.
	PayoutsEnabled bool

	// DetailsSubmitted mirrors whether Connect onboarding was finished.
	DetailsSubmitted bool

	// CreatedAt / UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user with a generated ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PayoutReady reports whether the user can receive transfers.
func (u *User) PayoutReady() bool {
	return u.StripeAccountID != "" && u.PayoutsEnabled
}
