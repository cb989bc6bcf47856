package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arosales/juntas-seguras/internal/models"
)

const userColumns = `id, email, display_name, password_hash, stripe_customer_id,
	stripe_account_id, payouts_enabled, details_submitted, created_at, updated_at`

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, display_name, password_hash, stripe_customer_id,
			stripe_account_id, payouts_enabled, details_submitted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.StripeCustomerID,
		user.StripeAccountID,
		user.PayoutsEnabled,
		user.DetailsSubmitted,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where, arg,
	).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.StripeCustomerID,
		&user.StripeAccountID,
		&user.PayoutsEnabled,
		&user.DetailsSubmitted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByStripeAccount retrieves the user owning a Connect account.
// Used by the account.updated webhook.
func (s *SQLiteStore) GetUserByStripeAccount(ctx context.Context, accountID string) (*models.User, error) {
	if accountID == "" {
		return nil, nil
	}
	return s.getUser(ctx, "stripe_account_id = ?", accountID)
}

// SetStripeCustomer persists the lazily created Stripe customer id.
func (s *SQLiteStore) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET stripe_customer_id = ?, updated_at = ? WHERE id = ?",
		customerID, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

// SetConnectAccount persists a newly created Connect account id.
func (s *SQLiteStore) SetConnectAccount(ctx context.Context, userID, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET stripe_account_id = ?, updated_at = ? WHERE id = ?",
		accountID, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set connect account: %w", err)
	}
	return nil
}

// SetConnectStatus persists refreshed Connect enablement flags.
func (s *SQLiteStore) SetConnectStatus(ctx context.Context, userID string, payoutsEnabled, detailsSubmitted bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET payouts_enabled = ?, details_submitted = ?, updated_at = ? WHERE id = ?",
		payoutsEnabled, detailsSubmitted, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set connect status: %w", err)
	}
	return nil
}
