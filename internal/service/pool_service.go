package service

import (
	"context"
	"log/slog"

	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/storage"
)

// PoolService creates and reads pools. Reads are membership-gated: a pool's
// ledger and balance are visible only to its members.
type PoolService struct {
	store storage.Store
}

// NewPoolService creates a PoolService with the given storage backend.
func NewPoolService(store storage.Store) *PoolService {
	return &PoolService{store: store}
}

// MemberInput is one member in a create-pool request.
type MemberInput struct {
	UserID   string
	Position int
}

// CreatePool creates a pool with the requester as its admin. Member user ids
// must exist; display names are denormalized from the user records at
// creation time.
func (s *PoolService) CreatePool(ctx context.Context, requesterID, name string, contributionAmount int64, memberInputs []MemberInput) (*models.Pool, error) {
	members := make([]models.PoolMember, 0, len(memberInputs))
	seen := make(map[string]bool)
	for _, in := range memberInputs {
		if seen[in.UserID] {
			return nil, errInvalidInput("duplicate member in pool")
		}
		seen[in.UserID] = true

		user, err := s.store.GetUserByID(ctx, in.UserID)
		if err != nil {
			slog.Error("failed to load member", "user_id", in.UserID, "error", err)
			return nil, errInternal("could not create pool")
		}
		if user == nil {
			return nil, errInvalidInput("pool member is not a registered user")
		}

		role := models.RoleMember
		if in.UserID == requesterID {
			role = models.RoleAdmin
		}
		members = append(members, models.PoolMember{
			UserID:   in.UserID,
			Name:     user.DisplayName,
			Role:     role,
			Position: in.Position,
		})
	}
	if !seen[requesterID] {
		return nil, errInvalidInput("pool creator must be a member")
	}

	pool, err := models.NewPool(name, contributionAmount, members)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}

	if err := s.store.CreatePool(ctx, pool); err != nil {
		slog.Error("failed to create pool", "error", err)
		return nil, errInternal("could not create pool")
	}

	slog.Info("pool created",
		"pool_id", pool.ID,
		"name", pool.Name,
		"members", len(pool.Members),
		"contribution", pool.ContributionAmount,
	)
	return pool, nil
}

// GetPool returns the full pool aggregate for a member.
func (s *PoolService) GetPool(ctx context.Context, requesterID, poolID string) (*models.Pool, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		slog.Error("failed to load pool", "pool_id", poolID, "error", err)
		return nil, errInternal("could not load pool")
	}
	if pool == nil {
		return nil, errNotFound("pool not found")
	}
	if pool.Member(requesterID) == nil {
		return nil, errForbidden("you are not a member of this pool")
	}
	return pool, nil
}
