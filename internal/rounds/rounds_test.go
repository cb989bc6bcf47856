package rounds

import (
	"testing"

	"github.com/arosales/juntas-seguras/internal/models"
)

func fiveMemberPool() *models.Pool {
	members := []models.PoolMember{
		{UserID: "u1", Name: "Ana", Role: models.RoleAdmin, Position: 1},
		{UserID: "u2", Name: "Beto", Role: models.RoleMember, Position: 2},
		{UserID: "u3", Name: "Carla", Role: models.RoleMember, Position: 3},
		{UserID: "u4", Name: "Diego", Role: models.RoleMember, Position: 4},
		{UserID: "u5", Name: "Elena", Role: models.RoleMember, Position: 5},
	}
	return &models.Pool{
		ID:                 "pool-1",
		Name:               "Test Pool",
		ContributionAmount: 10000, // $100
		CurrentRound:       2,
		Status:             models.PoolActive,
		Members:            members,
	}
}

func TestPayoutAmount(t *testing.T) {
	tests := []struct {
		name         string
		contribution int64
		members      int
		want         int64
	}{
		{"five members at $100", 10000, 5, 40000},
		{"two members", 2500, 2, 2500},
		{"single member pool is invalid", 10000, 1, 0},
		{"zero members", 10000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PayoutAmount(tt.contribution, tt.members)
			if got != tt.want {
				t.Errorf("PayoutAmount(%d, %d) = %d, want %d", tt.contribution, tt.members, got, tt.want)
			}
		})
	}
}

func TestRecipient(t *testing.T) {
	pool := fiveMemberPool()

	r := Recipient(pool.Members, 2)
	if r == nil {
		t.Fatal("expected a recipient for round 2")
	}
	if r.UserID != "u2" {
		t.Errorf("expected u2 as round-2 recipient, got %s", r.UserID)
	}

	if got := Recipient(pool.Members, 6); got != nil {
		t.Errorf("expected nil recipient for round past rotation, got %v", got)
	}
}

func TestMissingContributors_MatchesByUserID(t *testing.T) {
	pool := fiveMemberPool()

	// Round 2: recipient is u2. Three of the four non-recipients have
	// completed contributions; Diego has not.
	pool.Transactions = []models.PoolTransaction{
		{UserID: "u1", MemberName: "Ana", Type: models.TxContribution, Round: 2, Status: models.TxCompleted},
		{UserID: "u3", MemberName: "Carla", Type: models.TxContribution, Round: 2, Status: models.TxCompleted},
		{UserID: "u5", MemberName: "Elena", Type: models.TxContribution, Round: 2, Status: models.TxCompleted},
		// Pending contribution does not count.
		{UserID: "u4", MemberName: "Diego", Type: models.TxContribution, Round: 2, Status: models.TxPending},
		// A completed contribution for a different round does not count.
		{UserID: "u4", MemberName: "Diego", Type: models.TxContribution, Round: 1, Status: models.TxCompleted},
	}

	missing := MissingContributors(pool, 2, "u2")
	if len(missing) != 1 {
		t.Fatalf("expected exactly 1 missing contributor, got %d: %v", len(missing), missing)
	}
	if missing[0] != "Diego" {
		t.Errorf("expected Diego to be missing, got %s", missing[0])
	}
}

func TestMissingContributors_RecipientExcluded(t *testing.T) {
	pool := fiveMemberPool()
	pool.Transactions = nil

	missing := MissingContributors(pool, 2, "u2")
	if len(missing) != 4 {
		t.Fatalf("expected 4 missing contributors, got %d: %v", len(missing), missing)
	}
	for _, name := range missing {
		if name == "Beto" {
			t.Error("recipient must not appear in the missing list")
		}
	}
}

func TestFinalRound(t *testing.T) {
	pool := fiveMemberPool()
	if FinalRound(pool, 4) {
		t.Error("round 4 of 5 is not final")
	}
	if !FinalRound(pool, 5) {
		t.Error("round 5 of 5 is final")
	}
}
