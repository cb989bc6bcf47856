package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arosales/juntas-seguras/internal/models"
)

// CreatePool persists a pool and its members in one transaction.
func (s *SQLiteStore) CreatePool(ctx context.Context, pool *models.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.New().String()
	}
	if pool.CreatedAt == 0 {
		pool.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pools (id, name, contribution_amount, current_round, total_amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pool.ID, pool.Name, pool.ContributionAmount, pool.CurrentRound,
		pool.TotalAmount, pool.Status, pool.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool: %w", err)
	}

	for _, m := range pool.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pool_members (pool_id, user_id, name, role, position, status, payout_received)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pool.ID, m.UserID, m.Name, m.Role, m.Position, m.Status, m.PayoutReceived,
		)
		if err != nil {
			return fmt.Errorf("failed to insert pool member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetPool retrieves a pool with its members (ordered by position) and its
// full transaction ledger.
func (s *SQLiteStore) GetPool(ctx context.Context, poolID string) (*models.Pool, error) {
	pool := &models.Pool{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, contribution_amount, current_round, total_amount, status, created_at
		 FROM pools WHERE id = ?`,
		poolID,
	).Scan(&pool.ID, &pool.Name, &pool.ContributionAmount, &pool.CurrentRound,
		&pool.TotalAmount, &pool.Status, &pool.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Pool not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, role, position, status, payout_received
		 FROM pool_members WHERE pool_id = ? ORDER BY position`,
		poolID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.PoolMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role, &m.Position, &m.Status, &m.PayoutReceived); err != nil {
			return nil, fmt.Errorf("failed to scan pool member: %w", err)
		}
		pool.Members = append(pool.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool members: %w", err)
	}

	txRows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, member_name, type, amount, round, status, payment_id, created_at
		 FROM pool_transactions WHERE pool_id = ? ORDER BY created_at, id`,
		poolID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool transactions: %w", err)
	}
	defer txRows.Close()

	for txRows.Next() {
		var t models.PoolTransaction
		if err := txRows.Scan(&t.ID, &t.UserID, &t.MemberName, &t.Type, &t.Amount,
			&t.Round, &t.Status, &t.PaymentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pool transaction: %w", err)
		}
		pool.Transactions = append(pool.Transactions, t)
	}
	if err := txRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool transactions: %w", err)
	}

	return pool, nil
}
