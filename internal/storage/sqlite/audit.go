package sqlite

import (
	"context"
	"fmt"

	"github.com/arosales/juntas-seguras/internal/models"
)

// AppendAudit inserts an audit record. Entries are never updated or deleted.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, pool_id, payment_id, detail, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ActorID, entry.Action, entry.PoolID, entry.PaymentID,
		entry.Detail, entry.Success, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
