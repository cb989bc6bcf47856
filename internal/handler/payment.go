package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/middleware"
	"github.com/arosales/juntas-seguras/internal/service"
)

// PaymentHandler serves the contribution and settlement routes.
type PaymentHandler struct {
	payments *service.PaymentService
	payouts  *service.PayoutService
}

// NewPaymentHandler creates a PaymentHandler over the given services.
func NewPaymentHandler(payments *service.PaymentService, payouts *service.PayoutService) *PaymentHandler {
	return &PaymentHandler{payments: payments, payouts: payouts}
}

type createIntentRequest struct {
	PoolID string `json:"poolId"`
	// Amount in dollars.
	Amount            float64 `json:"amount"`
	UseEscrow         bool    `json:"useEscrow"`
	EscrowReleaseDate int64   `json:"escrowReleaseDate"`
}

// CreatePaymentIntent handles POST /api/stripe/create-payment-intent.
func (h *PaymentHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	var req createIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.payments.CreateContribution(c.Context(), middleware.UserID(c), service.ContributionRequest{
		PoolID:            req.PoolID,
		Amount:            toCents(req.Amount),
		UseEscrow:         req.UseEscrow,
		EscrowReleaseDate: req.EscrowReleaseDate,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"clientSecret":    res.ClientSecret,
		"paymentIntentId": res.PaymentIntentID,
		"paymentId":       res.PaymentID,
	})
}

type captureRequest struct {
	PaymentID       string `json:"paymentId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Capture handles POST /api/stripe/capture: an admin releasing a held
// escrow charge.
func (h *PaymentHandler) Capture(c *fiber.Ctx) error {
	var req captureRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	payment, err := h.payments.ReleaseEscrow(c.Context(), middleware.UserID(c), req.PaymentID, req.PaymentIntentID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"status":    "RELEASED",
		"paymentId": payment.PaymentID,
	})
}

type payoutRequest struct {
	PoolID string `json:"poolId"`
}

// Payout handles POST /api/stripe/payout: settling the current round.
func (h *PaymentHandler) Payout(c *fiber.Ctx) error {
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PoolID == "" {
		return badRequest(c, "poolId is required")
	}

	res, err := h.payouts.SettlePayout(c.Context(), middleware.UserID(c), req.PoolID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"paymentId":     res.PaymentID,
		"transferId":    res.TransferID,
		"amount":        toDollars(res.Amount),
		"recipient":     res.Recipient,
		"round":         res.Round,
		"poolCompleted": res.PoolCompleted,
	})
}
