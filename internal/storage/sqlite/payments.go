package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/storage"
)

const paymentColumns = `payment_id, user_id, pool_id, amount, type, status,
	stripe_payment_intent_id, stripe_transfer_id, round, release_date,
	released_by, released_at, created_at, updated_at`

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The driver surfaces SQLite's own message text, so matching on it works
// for wrapped errors too.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// execer is satisfied by both *sql.DB and *sql.Tx so inserts can run inside
// or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPayment(ctx context.Context, q execer, p *models.Payment) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO payments (payment_id, user_id, pool_id, amount, type, status,
			stripe_payment_intent_id, stripe_transfer_id, round, release_date,
			released_by, released_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PaymentID, p.UserID, p.PoolID, p.Amount, p.Type, p.Status,
		p.StripePaymentIntentID, p.StripeTransferID, p.Round, p.ReleaseDate,
		p.ReleasedBy, p.ReleasedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, q execer, poolID string, t *models.PoolTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO pool_transactions (id, pool_id, user_id, member_name, type, amount, round, status, payment_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, poolID, t.UserID, t.MemberName, t.Type, t.Amount, t.Round, t.Status, t.PaymentID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool transaction: %w", err)
	}
	return nil
}

// CreatePayment persists a standalone payment.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return insertPayment(ctx, s.db, payment)
}

// CreatePaymentWithLedger persists a payment and its pending ledger entry
// atomically.
func (s *SQLiteStore) CreatePaymentWithLedger(ctx context.Context, payment *models.Payment, entry *models.PoolTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, payment.PoolID, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getPayment(ctx context.Context, where string, arg any) (*models.Payment, error) {
	p := &models.Payment{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE "+where, arg,
	).Scan(
		&p.PaymentID, &p.UserID, &p.PoolID, &p.Amount, &p.Type, &p.Status,
		&p.StripePaymentIntentID, &p.StripeTransferID, &p.Round, &p.ReleaseDate,
		&p.ReleasedBy, &p.ReleasedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Payment not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPayment retrieves a payment by its opaque id.
func (s *SQLiteStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.getPayment(ctx, "payment_id = ?", paymentID)
}

// GetPaymentByIntent retrieves a payment by its Stripe payment-intent id.
func (s *SQLiteStore) GetPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	if intentID == "" {
		return nil, nil
	}
	return s.getPayment(ctx, "stripe_payment_intent_id = ?", intentID)
}

// CompleteContribution settles a pending contribution: payment completed,
// ledger entry completed, pool balance incremented. The status predicate on
// the payment update keeps transitions forward-only.
func (s *SQLiteStore) CompleteContribution(ctx context.Context, paymentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var poolID string
	var amount int64
	err = tx.QueryRowContext(ctx,
		"SELECT pool_id, amount FROM payments WHERE payment_id = ?", paymentID,
	).Scan(&poolID, &amount)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payment not found: %s", paymentID)
	}
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = ?, updated_at = ? WHERE payment_id = ? AND status = ?",
		models.PaymentCompleted, time.Now().Unix(), paymentID, models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrInvalidTransition
	}

	if poolID != "" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE pool_transactions SET status = ? WHERE payment_id = ?",
			models.TxCompleted, paymentID,
		); err != nil {
			return fmt.Errorf("failed to complete ledger entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE pools SET total_amount = total_amount + ? WHERE id = ?",
			amount, poolID,
		); err != nil {
			return fmt.Errorf("failed to add to pool balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FailPayment marks a pending payment failed. The ledger entry, if any,
// stays pending and simply never counts toward a round.
func (s *SQLiteStore) FailPayment(ctx context.Context, paymentID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = ?, updated_at = ? WHERE payment_id = ? AND status = ?",
		models.PaymentFailed, time.Now().Unix(), paymentID, models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrInvalidTransition
	}
	return nil
}

// ReleaseEscrow settles a captured escrow hold: payment released with the
// releasing actor recorded, ledger entry completed, pool balance
// incremented.
func (s *SQLiteStore) ReleaseEscrow(ctx context.Context, paymentID, releasedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var poolID string
	var amount int64
	err = tx.QueryRowContext(ctx,
		"SELECT pool_id, amount FROM payments WHERE payment_id = ?", paymentID,
	).Scan(&poolID, &amount)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payment not found: %s", paymentID)
	}
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, released_by = ?, released_at = ?, updated_at = ?
		 WHERE payment_id = ? AND status = ?`,
		models.PaymentReleased, releasedBy, now, now, paymentID, models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to release payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrInvalidTransition
	}

	if poolID != "" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE pool_transactions SET status = ? WHERE payment_id = ?",
			models.TxCompleted, paymentID,
		); err != nil {
			return fmt.Errorf("failed to complete ledger entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE pools SET total_amount = total_amount + ? WHERE id = ?",
			amount, poolID,
		); err != nil {
			return fmt.Errorf("failed to add to pool balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
