package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arosales/juntas-seguras/internal/metrics"
	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/processor"
	"github.com/arosales/juntas-seguras/internal/storage"
)

// Contribution amount bounds in cents.
const (
	minContribution = 50      // $0.50
	maxContribution = 1000000 // $10,000
)

// PaymentService creates contribution intents and settles them: webhook
// confirmations for immediate-capture contributions, admin capture for
// escrow holds.
type PaymentService struct {
	store   storage.Store
	gateway processor.Gateway
}

// NewPaymentService creates a PaymentService with the given storage backend
// and processor gateway.
func NewPaymentService(store storage.Store, gateway processor.Gateway) *PaymentService {
	return &PaymentService{store: store, gateway: gateway}
}

// ContributionRequest is a validated create-payment-intent call.
type ContributionRequest struct {
	PoolID string
	// Amount in cents.
	Amount            int64
	UseEscrow         bool
	EscrowReleaseDate int64
}

// ContributionResult carries what the UI needs to confirm the payment.
type ContributionResult struct {
	ClientSecret    string
	PaymentIntentID string
	PaymentID       string
}

// CreateContribution validates the request, ensures the payer has a Stripe
// customer, creates the payment intent (held when escrow), and persists the
// pending payment with its ledger entry. The intent is created before
// anything is persisted so a processor failure leaves no partial payment row.
func (s *PaymentService) CreateContribution(ctx context.Context, userID string, req ContributionRequest) (*ContributionResult, error) {
	if req.Amount < minContribution || req.Amount > maxContribution {
		return nil, errInvalidInput("Amount must be between $0.50 and $10,000")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		return nil, errInternal("could not process payment")
	}
	if user == nil {
		return nil, errNotFound("user not found")
	}

	var pool *models.Pool
	var member *models.PoolMember
	if req.PoolID != "" {
		pool, err = s.store.GetPool(ctx, req.PoolID)
		if err != nil {
			slog.Error("failed to load pool", "pool_id", req.PoolID, "error", err)
			return nil, errInternal("could not process payment")
		}
		if pool == nil {
			return nil, errNotFound("pool not found")
		}
		member = pool.Member(userID)
		if member == nil {
			return nil, errForbidden("you are not a member of this pool")
		}
		if req.Amount != pool.ContributionAmount {
			return nil, errInvalidInput(fmt.Sprintf(
				"contribution must be exactly $%.2f for this pool",
				float64(pool.ContributionAmount)/100,
			))
		}
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to ensure stripe customer", "user_id", userID, "error", err)
		return nil, errInternal("could not process payment")
	}

	paymentType := models.PaymentContribution
	action := models.AuditPaymentInitiated
	if req.UseEscrow {
		paymentType = models.PaymentEscrow
		action = models.AuditPaymentEscrowInitiated
	}

	round := 0
	if pool != nil {
		round = pool.CurrentRound
	}

	// Intent first, persist second: a processor failure here leaves no
	// local state behind.
	intent, err := s.gateway.CreateIntent(ctx, processor.IntentParams{
		Amount:        req.Amount,
		CustomerID:    customerID,
		ManualCapture: req.UseEscrow,
		Metadata: map[string]string{
			"user_id": userID,
			"pool_id": req.PoolID,
		},
	})
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to create payment intent", "user_id", userID, "error", err)
		return nil, errInternal("could not process payment")
	}

	payment, err := models.NewPayment(userID, req.PoolID, req.Amount, paymentType, round)
	if err != nil {
		return nil, errInternal("could not process payment")
	}
	payment.StripePaymentIntentID = intent.ID
	payment.ReleaseDate = req.EscrowReleaseDate

	if pool != nil {
		entry := &models.PoolTransaction{
			UserID:     userID,
			MemberName: member.Name,
			Type:       models.TxContribution,
			Amount:     req.Amount,
			Round:      round,
			Status:     models.TxPending,
			PaymentID:  payment.PaymentID,
		}
		err = s.store.CreatePaymentWithLedger(ctx, payment, entry)
	} else {
		err = s.store.CreatePayment(ctx, payment)
	}
	if err != nil {
		slog.Error("failed to persist payment", "payment_id", payment.PaymentID, "error", err)
		return nil, errInternal("could not process payment")
	}

	s.audit(ctx, auditFields{
		actorID:   userID,
		action:    action,
		poolID:    req.PoolID,
		paymentID: payment.PaymentID,
		success:   true,
		detail: map[string]any{
			"amount":    req.Amount,
			"intent_id": intent.ID,
			"escrow":    req.UseEscrow,
		},
	})
	metrics.IntentsCreated.WithLabelValues(string(paymentType)).Inc()

	slog.Info("payment intent created",
		"payment_id", payment.PaymentID,
		"user_id", userID,
		"pool_id", req.PoolID,
		"amount", req.Amount,
		"escrow", req.UseEscrow,
	)

	return &ContributionResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentID:       payment.PaymentID,
	}, nil
}

// ReleaseEscrow captures a held charge. Only an admin of the payment's pool
// may release; the intent must currently be in requires_capture, so a second
// release attempt is rejected rather than silently succeeding.
func (s *PaymentService) ReleaseEscrow(ctx context.Context, requesterID, paymentID, intentID string) (*models.Payment, error) {
	payment, err := s.lookupPayment(ctx, paymentID, intentID)
	if err != nil {
		return nil, err
	}
	if payment.Type != models.PaymentEscrow {
		return nil, errInvalidState("payment is not an escrow payment")
	}
	if payment.Status != models.PaymentPending {
		return nil, errInvalidState(fmt.Sprintf("payment already %s", payment.Status))
	}

	if payment.PoolID != "" {
		pool, err := s.store.GetPool(ctx, payment.PoolID)
		if err != nil {
			slog.Error("failed to load pool", "pool_id", payment.PoolID, "error", err)
			return nil, errInternal("could not release escrow")
		}
		if pool == nil {
			return nil, errNotFound("pool not found")
		}
		if !pool.IsAdmin(requesterID) {
			return nil, errForbidden("only a pool admin can release escrow")
		}
	}

	intent, err := s.gateway.GetIntent(ctx, payment.StripePaymentIntentID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to retrieve intent", "intent_id", payment.StripePaymentIntentID, "error", err)
		return nil, errProcessor("payment processor unavailable")
	}
	if intent.Status != processor.StatusRequiresCapture {
		return nil, errInvalidState(fmt.Sprintf(
			"charge cannot be captured in state %q", intent.Status,
		))
	}

	if _, err := s.gateway.CaptureIntent(ctx, payment.StripePaymentIntentID); err != nil {
		metrics.ProcessorErrors.Inc()
		s.audit(ctx, auditFields{
			actorID:   requesterID,
			action:    models.AuditEscrowReleased,
			poolID:    payment.PoolID,
			paymentID: payment.PaymentID,
			success:   false,
			detail:    map[string]any{"error": err.Error()},
		})
		slog.Error("failed to capture intent", "intent_id", payment.StripePaymentIntentID, "error", err)
		return nil, errProcessor("payment processor unavailable")
	}

	if err := s.store.ReleaseEscrow(ctx, payment.PaymentID, requesterID); err != nil {
		// Money moved but the record did not. Log loudly; the row stays
		// pending for reconciliation against the captured intent.
		slog.Error("captured intent but failed to record release",
			"payment_id", payment.PaymentID, "error", err)
		return nil, errInternal("could not release escrow")
	}

	s.audit(ctx, auditFields{
		actorID:   requesterID,
		action:    models.AuditEscrowReleased,
		poolID:    payment.PoolID,
		paymentID: payment.PaymentID,
		success:   true,
		detail:    map[string]any{"amount": payment.Amount},
	})
	metrics.EscrowsReleased.Inc()

	slog.Info("escrow released",
		"payment_id", payment.PaymentID,
		"released_by", requesterID,
		"amount", payment.Amount,
	)

	return s.store.GetPayment(ctx, payment.PaymentID)
}

// ConfirmIntentSucceeded settles the contribution behind a succeeded intent.
// Escrow intents are ignored here; their settlement is the capture flow.
// Safe to call more than once: a repeated webhook hits the forward-only
// guard and is dropped.
func (s *PaymentService) ConfirmIntentSucceeded(ctx context.Context, intentID string) error {
	payment, err := s.store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("failed to look up payment for intent %s: %w", intentID, err)
	}
	if payment == nil {
		slog.Warn("webhook for unknown intent", "intent_id", intentID)
		return nil
	}
	if payment.Type == models.PaymentEscrow {
		slog.Info("escrow intent authorized, awaiting admin release", "payment_id", payment.PaymentID)
		return nil
	}

	err = s.store.CompleteContribution(ctx, payment.PaymentID)
	if errors.Is(err, storage.ErrInvalidTransition) {
		slog.Info("duplicate webhook ignored", "payment_id", payment.PaymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to complete contribution %s: %w", payment.PaymentID, err)
	}

	slog.Info("contribution settled", "payment_id", payment.PaymentID, "amount", payment.Amount)
	return nil
}

// ConfirmIntentFailed marks the payment behind a failed intent as failed.
func (s *PaymentService) ConfirmIntentFailed(ctx context.Context, intentID string) error {
	payment, err := s.store.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("failed to look up payment for intent %s: %w", intentID, err)
	}
	if payment == nil {
		slog.Warn("webhook for unknown intent", "intent_id", intentID)
		return nil
	}

	err = s.store.FailPayment(ctx, payment.PaymentID)
	if errors.Is(err, storage.ErrInvalidTransition) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fail payment %s: %w", payment.PaymentID, err)
	}

	slog.Info("payment marked failed", "payment_id", payment.PaymentID)
	return nil
}

func (s *PaymentService) lookupPayment(ctx context.Context, paymentID, intentID string) (*models.Payment, error) {
	var payment *models.Payment
	var err error
	switch {
	case paymentID != "":
		payment, err = s.store.GetPayment(ctx, paymentID)
	case intentID != "":
		payment, err = s.store.GetPaymentByIntent(ctx, intentID)
	default:
		return nil, errInvalidInput("paymentId or paymentIntentId is required")
	}
	if err != nil {
		slog.Error("failed to look up payment", "error", err)
		return nil, errInternal("could not load payment")
	}
	if payment == nil {
		return nil, errNotFound("payment not found")
	}
	return payment, nil
}

func (s *PaymentService) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, user.Email, user.DisplayName)
	if err != nil {
		return "", err
	}
	if err := s.store.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// auditFields collects what goes into one audit entry.
type auditFields struct {
	actorID   string
	action    string
	poolID    string
	paymentID string
	success   bool
	detail    map[string]any
}

// audit writes an audit entry. Fire-and-forget: an audit failure is logged
// but never fails the operation it describes.
func (s *PaymentService) audit(ctx context.Context, f auditFields) {
	writeAudit(ctx, s.store, f)
}

func writeAudit(ctx context.Context, store storage.Store, f auditFields) {
	entry := models.NewAuditEntry(f.actorID, f.action, f.success)
	entry.PoolID = f.poolID
	entry.PaymentID = f.paymentID
	if f.detail != nil {
		if b, err := json.Marshal(f.detail); err == nil {
			entry.Detail = string(b)
		}
	}
	if err := store.AppendAudit(ctx, entry); err != nil {
		slog.Error("failed to write audit entry", "action", f.action, "error", err)
	}
}
