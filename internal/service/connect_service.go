package service

import (
	"context"
	"log/slog"

	"github.com/arosales/juntas-seguras/internal/metrics"
	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/processor"
	"github.com/arosales/juntas-seguras/internal/storage"
)

// ConnectService manages payee onboarding: an Express connected account per
// user, an onboarding link to finish it, and a dashboard link afterwards.
type ConnectService struct {
	store   storage.Store
	gateway processor.Gateway
}

// NewConnectService creates a ConnectService with the given storage backend
// and processor gateway.
func NewConnectService(store storage.Store, gateway processor.Gateway) *ConnectService {
	return &ConnectService{store: store, gateway: gateway}
}

// ConnectStatus is the payee-account state reported to the UI.
type ConnectStatus struct {
	HasAccount       bool
	AccountID        string
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Status reports the user's connect-account state. When an account exists
// the enablement flags are refreshed from the processor and persisted, so
// the report never lags a finished onboarding.
func (s *ConnectService) Status(ctx context.Context, userID string) (*ConnectStatus, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		return nil, errInternal("could not check account status")
	}
	if user == nil {
		return nil, errNotFound("user not found")
	}
	if user.StripeAccountID == "" {
		return &ConnectStatus{}, nil
	}

	account, err := s.gateway.GetAccount(ctx, user.StripeAccountID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to fetch connect account", "account_id", user.StripeAccountID, "error", err)
		// Fall back to the cached flags rather than failing the read.
		return &ConnectStatus{
			HasAccount:       true,
			AccountID:        user.StripeAccountID,
			PayoutsEnabled:   user.PayoutsEnabled,
			DetailsSubmitted: user.DetailsSubmitted,
		}, nil
	}

	if account.PayoutsEnabled != user.PayoutsEnabled || account.DetailsSubmitted != user.DetailsSubmitted {
		if err := s.store.SetConnectStatus(ctx, userID, account.PayoutsEnabled, account.DetailsSubmitted); err != nil {
			slog.Error("failed to refresh connect status", "user_id", userID, "error", err)
		}
	}

	return &ConnectStatus{
		HasAccount:       true,
		AccountID:        user.StripeAccountID,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

// CreateAccount creates the user's connected account and returns the
// onboarding link. A user has at most one account; a second create is a
// conflict, not a fresh account.
func (s *ConnectService) CreateAccount(ctx context.Context, userID string) (string, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		return "", errInternal("could not create payout account")
	}
	if user == nil {
		return "", errNotFound("user not found")
	}
	if user.StripeAccountID != "" {
		return "", errAlreadyExists("you already have a payout account")
	}

	accountID, err := s.gateway.CreateAccount(ctx, user.Email)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to create connect account", "user_id", userID, "error", err)
		return "", errProcessor("could not create payout account")
	}

	if err := s.store.SetConnectAccount(ctx, userID, accountID); err != nil {
		slog.Error("created connect account but failed to persist it",
			"user_id", userID, "account_id", accountID, "error", err)
		return "", errInternal("could not create payout account")
	}

	writeAudit(ctx, s.store, auditFields{
		actorID: userID,
		action:  models.AuditConnectAccountCreated,
		success: true,
		detail:  map[string]any{"account_id": accountID},
	})

	link, err := s.gateway.OnboardingLink(ctx, accountID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to create onboarding link", "account_id", accountID, "error", err)
		return "", errProcessor("could not create onboarding link")
	}

	slog.Info("connect account created", "user_id", userID, "account_id", accountID)
	return link, nil
}

// OnboardingLink returns a fresh onboarding link for an existing account.
// Links expire quickly, so the UI requests a new one per attempt.
func (s *ConnectService) OnboardingLink(ctx context.Context, userID string) (string, error) {
	user, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	link, err := s.gateway.OnboardingLink(ctx, user.StripeAccountID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to create onboarding link", "account_id", user.StripeAccountID, "error", err)
		return "", errProcessor("could not create onboarding link")
	}
	return link, nil
}

// DashboardLink returns a login link to the user's Express dashboard.
func (s *ConnectService) DashboardLink(ctx context.Context, userID string) (string, error) {
	user, err := s.requireAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	link, err := s.gateway.DashboardLink(ctx, user.StripeAccountID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to create dashboard link", "account_id", user.StripeAccountID, "error", err)
		return "", errProcessor("could not create dashboard link")
	}
	return link, nil
}

// RefreshAccount persists the enablement flags pushed by an account.updated
// event.
func (s *ConnectService) RefreshAccount(ctx context.Context, accountID string, payoutsEnabled, detailsSubmitted bool) error {
	user, err := s.store.GetUserByStripeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if user == nil {
		slog.Warn("account event for unknown account", "account_id", accountID)
		return nil
	}
	if err := s.store.SetConnectStatus(ctx, user.ID, payoutsEnabled, detailsSubmitted); err != nil {
		return err
	}
	slog.Info("connect status updated",
		"user_id", user.ID,
		"payouts_enabled", payoutsEnabled,
		"details_submitted", detailsSubmitted,
	)
	return nil
}

func (s *ConnectService) requireAccount(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		return nil, errInternal("could not load payout account")
	}
	if user == nil {
		return nil, errNotFound("user not found")
	}
	if user.StripeAccountID == "" {
		return nil, errWithCode(CodeNoConnectAccount, "you have not set up a payout account yet")
	}
	return user, nil
}
