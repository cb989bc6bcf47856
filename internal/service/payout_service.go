package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arosales/juntas-seguras/internal/metrics"
	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/processor"
	"github.com/arosales/juntas-seguras/internal/rounds"
	"github.com/arosales/juntas-seguras/internal/storage"
)

// transferTimeout bounds the external transfer call inside the payout saga.
// A transfer that has not answered by then is treated as failed and the
// local state is compensated.
const transferTimeout = 30 * time.Second

// PayoutService settles a pool round: it validates eligibility, reserves the
// payout locally, moves the money, and either finalizes or compensates.
type PayoutService struct {
	store   storage.Store
	gateway processor.Gateway
}

// NewPayoutService creates a PayoutService with the given storage backend
// and processor gateway.
func NewPayoutService(store storage.Store, gateway processor.Gateway) *PayoutService {
	return &PayoutService{store: store, gateway: gateway}
}

// PayoutResult describes a settled payout.
type PayoutResult struct {
	PaymentID string
	// Amount in cents.
	Amount     int64
	TransferID string
	Recipient  string
	Round      int
	// PoolCompleted is set when this was the final round.
	PoolCompleted bool
}

// SettlePayout pays the current round's recipient. The local reservation is
// committed before the transfer so a crash mid-transfer leaves a visible
// pending payout instead of a silent double-pay window; a failed transfer is
// compensated by restoring the reservation.
func (s *PayoutService) SettlePayout(ctx context.Context, requesterID, poolID string) (*PayoutResult, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		slog.Error("failed to load pool", "pool_id", poolID, "error", err)
		return nil, errInternal("could not process payout")
	}
	if pool == nil {
		return nil, errNotFound("pool not found")
	}
	if !pool.IsAdmin(requesterID) {
		return nil, errForbidden("only a pool admin can trigger a payout")
	}

	round := pool.CurrentRound
	recipient := rounds.Recipient(pool.Members, round)
	if recipient == nil {
		slog.Error("no member at current round position", "pool_id", poolID, "round", round)
		return nil, errInvalidState("pool has no recipient for the current round")
	}
	// Paid-recipient check before the pool-status check, so a replayed
	// final-round request reports the already-settled payout rather than
	// a generic completed-pool error.
	if recipient.PayoutReceived {
		return nil, errWithCode(CodeAlreadyPaid, "recipient has already received a payout for this round")
	}
	if pool.Status != models.PoolActive {
		return nil, errInvalidState(fmt.Sprintf("pool is %s", pool.Status))
	}

	recipientUser, err := s.store.GetUserByID(ctx, recipient.UserID)
	if err != nil {
		slog.Error("failed to load recipient", "user_id", recipient.UserID, "error", err)
		return nil, errInternal("could not process payout")
	}
	if recipientUser == nil || recipientUser.StripeAccountID == "" {
		return nil, errWithCode(CodeNoConnectAccount,
			fmt.Sprintf("%s has not set up a payout account yet", recipient.Name))
	}

	// Check enablement against the processor, not just the cached flags:
	// the account may have been restricted since the last webhook.
	account, err := s.gateway.GetAccount(ctx, recipientUser.StripeAccountID)
	if err != nil {
		metrics.ProcessorErrors.Inc()
		slog.Error("failed to check connect account", "account_id", recipientUser.StripeAccountID, "error", err)
		return nil, errProcessor("payment processor unavailable")
	}
	if account.PayoutsEnabled != recipientUser.PayoutsEnabled || account.DetailsSubmitted != recipientUser.DetailsSubmitted {
		if err := s.store.SetConnectStatus(ctx, recipientUser.ID, account.PayoutsEnabled, account.DetailsSubmitted); err != nil {
			slog.Error("failed to refresh connect status", "user_id", recipientUser.ID, "error", err)
		}
	}
	if !account.PayoutsEnabled {
		return nil, errWithCode(CodeAccountNotReady,
			fmt.Sprintf("%s's payout account is not fully set up", recipient.Name))
	}

	if missing := rounds.MissingContributors(pool, round, recipient.UserID); len(missing) > 0 {
		return nil, &Error{
			Code:    CodeMissingContributions,
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("waiting on contributions from: %s", strings.Join(missing, ", ")),
			Missing: missing,
		}
	}

	amount := rounds.PayoutAmount(pool.ContributionAmount, len(pool.Members))
	if pool.TotalAmount < amount {
		return nil, errWithCode(CodeInsufficientBalance, fmt.Sprintf(
			"pool balance $%.2f is less than the payout amount $%.2f",
			float64(pool.TotalAmount)/100, float64(amount)/100,
		))
	}

	payment, err := models.NewPayment(recipient.UserID, poolID, amount, models.PaymentPayout, round)
	if err != nil {
		return nil, errInternal("could not process payout")
	}

	prevStatus, err := s.store.BeginPayout(ctx, poolID, recipient.UserID, payment)
	if errors.Is(err, storage.ErrPayoutAlreadyReceived) {
		return nil, errWithCode(CodeAlreadyPaid, "recipient has already received a payout for this round")
	}
	if err != nil {
		slog.Error("failed to reserve payout", "pool_id", poolID, "error", err)
		return nil, errInternal("could not process payout")
	}

	transferCtx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()
	transfer, err := s.gateway.CreateTransfer(transferCtx, processor.TransferParams{
		Amount:               amount,
		DestinationAccountID: recipientUser.StripeAccountID,
		Description:          fmt.Sprintf("%s round %d payout", pool.Name, round),
		Metadata: map[string]string{
			"pool_id":    poolID,
			"payment_id": payment.PaymentID,
			"round":      fmt.Sprintf("%d", round),
		},
	})
	if err != nil {
		metrics.ProcessorErrors.Inc()
		metrics.Payouts.WithLabelValues("compensated").Inc()
		slog.Error("transfer failed, compensating payout",
			"pool_id", poolID,
			"payment_id", payment.PaymentID,
			"error", err,
		)
		if compErr := s.store.CompensatePayout(ctx, payment.PaymentID, poolID, recipient.UserID, prevStatus); compErr != nil {
			// Reservation is stuck until reconciliation; the guard still
			// blocks a second payout.
			slog.Error("failed to compensate payout", "payment_id", payment.PaymentID, "error", compErr)
		}
		writeAudit(ctx, s.store, auditFields{
			actorID:   requesterID,
			action:    models.AuditPoolPayout,
			poolID:    poolID,
			paymentID: payment.PaymentID,
			success:   false,
			detail: map[string]any{
				"amount":    amount,
				"recipient": recipient.UserID,
				"round":     round,
				"error":     err.Error(),
			},
		})
		return nil, errProcessor("payout transfer failed")
	}

	if err := s.store.CompletePayout(ctx, poolID, payment.PaymentID, transfer.ID); err != nil {
		// Money moved but the books did not; the pending payment plus the
		// transfer id in the audit entry is what reconciliation works from.
		slog.Error("transfer sent but failed to finalize payout",
			"payment_id", payment.PaymentID,
			"transfer_id", transfer.ID,
			"error", err,
		)
		writeAudit(ctx, s.store, auditFields{
			actorID:   requesterID,
			action:    models.AuditPoolPayout,
			poolID:    poolID,
			paymentID: payment.PaymentID,
			success:   false,
			detail: map[string]any{
				"amount":      amount,
				"transfer_id": transfer.ID,
				"error":       err.Error(),
			},
		})
		return nil, errInternal("could not finalize payout")
	}

	writeAudit(ctx, s.store, auditFields{
		actorID:   requesterID,
		action:    models.AuditPoolPayout,
		poolID:    poolID,
		paymentID: payment.PaymentID,
		success:   true,
		detail: map[string]any{
			"amount":      amount,
			"recipient":   recipient.UserID,
			"round":       round,
			"transfer_id": transfer.ID,
		},
	})
	metrics.Payouts.WithLabelValues("completed").Inc()

	completed := rounds.FinalRound(pool, round)
	slog.Info("payout settled",
		"pool_id", poolID,
		"payment_id", payment.PaymentID,
		"recipient", recipient.UserID,
		"amount", amount,
		"round", round,
		"transfer_id", transfer.ID,
		"pool_completed", completed,
	)

	return &PayoutResult{
		PaymentID:     payment.PaymentID,
		Amount:        amount,
		TransferID:    transfer.ID,
		Recipient:     recipient.Name,
		Round:         round,
		PoolCompleted: completed,
	}, nil
}
