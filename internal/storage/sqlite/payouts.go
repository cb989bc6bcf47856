package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/storage"
)

// BeginPayout runs the pre-transfer transaction of the payout saga: mark the
// recipient in flight and insert the pending payout payment. Two guards make
// the reservation atomic: the member update carries a payout_received = 0
// predicate, which blocks replays of a completed round, and the payment
// insert hits the unique live-payout-per-round index, which blocks a second
// request arriving while the first transfer is still in flight. The losing
// request gets ErrPayoutAlreadyReceived either way.
//
// Returns the recipient's status before the update so a failed transfer can
// restore it.
func (s *SQLiteStore) BeginPayout(ctx context.Context, poolID, recipientUserID string, payment *models.Payment) (models.MemberStatus, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prevStatus models.MemberStatus
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM pool_members WHERE pool_id = ? AND user_id = ?",
		poolID, recipientUserID,
	).Scan(&prevStatus)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("recipient %s not found in pool %s", recipientUserID, poolID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load recipient: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE pool_members SET status = ?
		 WHERE pool_id = ? AND user_id = ? AND payout_received = 0`,
		models.MemberCurrent, poolID, recipientUserID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to mark recipient in flight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", storage.ErrPayoutAlreadyReceived
	}

	if err := insertPayment(ctx, tx, payment); err != nil {
		if isUniqueViolation(err) {
			return "", storage.ErrPayoutAlreadyReceived
		}
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return prevStatus, nil
}

// CompensatePayout reverses BeginPayout after the external transfer failed:
// the payment becomes failed and the recipient goes back to the status it
// held before the attempt. The ledger never saw the payout, so nothing else
// needs undoing.
func (s *SQLiteStore) CompensatePayout(ctx context.Context, paymentID, poolID, recipientUserID string, prevStatus models.MemberStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = ?, updated_at = ? WHERE payment_id = ? AND status = ?",
		models.PaymentFailed, time.Now().Unix(), paymentID, models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to fail payout payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrInvalidTransition
	}

	// Restore only if still in flight; never clear payout_received.
	if _, err := tx.ExecContext(ctx,
		`UPDATE pool_members SET status = ?
		 WHERE pool_id = ? AND user_id = ? AND payout_received = 0`,
		prevStatus, poolID, recipientUserID,
	); err != nil {
		return fmt.Errorf("failed to restore recipient status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CompletePayout applies the success mutations of the payout saga in one
// transaction: payment completed with the transfer reference, pool balance
// decremented, completed payout ledger entry appended, recipient marked
// paid, and the rotation advanced; on the final round, the pool is instead
// completed with the round left unchanged.
func (s *SQLiteStore) CompletePayout(ctx context.Context, poolID, paymentID, transferID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var amount int64
	var round int
	var recipientID string
	err = tx.QueryRowContext(ctx,
		"SELECT amount, round, user_id FROM payments WHERE payment_id = ?", paymentID,
	).Scan(&amount, &round, &recipientID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payment not found: %s", paymentID)
	}
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, stripe_transfer_id = ?, updated_at = ?
		 WHERE payment_id = ? AND status = ?`,
		models.PaymentCompleted, transferID, time.Now().Unix(), paymentID, models.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("failed to complete payout payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE pools SET total_amount = total_amount - ? WHERE id = ?",
		amount, poolID,
	); err != nil {
		return fmt.Errorf("failed to deduct pool balance: %w", err)
	}

	var recipientName string
	if err := tx.QueryRowContext(ctx,
		"SELECT name FROM pool_members WHERE pool_id = ? AND user_id = ?",
		poolID, recipientID,
	).Scan(&recipientName); err != nil {
		return fmt.Errorf("failed to load recipient name: %w", err)
	}

	entry := &models.PoolTransaction{
		UserID:     recipientID,
		MemberName: recipientName,
		Type:       models.TxPayout,
		Amount:     amount,
		Round:      round,
		Status:     models.TxCompleted,
		PaymentID:  paymentID,
	}
	if err := insertTransaction(ctx, tx, poolID, entry); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pool_members SET payout_received = 1, status = ?
		 WHERE pool_id = ? AND user_id = ?`,
		models.MemberCompleted, poolID, recipientID,
	); err != nil {
		return fmt.Errorf("failed to mark recipient paid: %w", err)
	}

	var memberCount int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pool_members WHERE pool_id = ?", poolID,
	).Scan(&memberCount); err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}

	if round < memberCount {
		next := round + 1
		if _, err := tx.ExecContext(ctx,
			"UPDATE pools SET current_round = ? WHERE id = ?",
			next, poolID,
		); err != nil {
			return fmt.Errorf("failed to advance round: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE pool_members SET status = ? WHERE pool_id = ? AND position = ?",
			models.MemberCurrent, poolID, next,
		); err != nil {
			return fmt.Errorf("failed to mark next recipient: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE pools SET status = ? WHERE id = ?",
			models.PoolCompleted, poolID,
		); err != nil {
			return fmt.Errorf("failed to complete pool: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
