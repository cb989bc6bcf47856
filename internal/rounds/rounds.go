// Package rounds holds the pure round arithmetic for rotating savings pools:
// payout sizing, contribution completeness, and rotation lookups. Everything
// here is side-effect free so the settlement engine can be tested without a
// database.
package rounds

import (
	"sort"

	"github.com/arosales/juntas-seguras/internal/models"
)

// PayoutAmount is the sum owed to a round's recipient: every member except
// the recipient contributes once.
func PayoutAmount(contributionAmount int64, memberCount int) int64 {
	if memberCount < 2 {
		return 0
	}
	return contributionAmount * int64(memberCount-1)
}

// Recipient returns the member whose position matches round, or nil if the
// rotation has no such member (a data-integrity fault the caller must treat
// as invalid state).
func Recipient(members []models.PoolMember, round int) *models.PoolMember {
	for i := range members {
		if members[i].Position == round {
			return &members[i]
		}
	}
	return nil
}

// MissingContributors returns the display names of non-recipient members who
// have no completed contribution ledger entry for the given round. Matching
// is by user id; names are only for the response. Names come back sorted so
// error payloads are stable.
func MissingContributors(pool *models.Pool, round int, recipientUserID string) []string {
	contributed := make(map[string]bool)
	for _, tx := range pool.Transactions {
		if tx.Type == models.TxContribution && tx.Round == round && tx.Status == models.TxCompleted {
			contributed[tx.UserID] = true
		}
	}

	var missing []string
	for _, m := range pool.Members {
		if m.UserID == recipientUserID {
			continue
		}
		if !contributed[m.UserID] {
			missing = append(missing, m.Name)
		}
	}
	sort.Strings(missing)
	return missing
}

// FinalRound reports whether the given round is the pool's last.
func FinalRound(pool *models.Pool, round int) bool {
	return round >= len(pool.Members)
}
