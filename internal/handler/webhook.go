package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/arosales/juntas-seguras/internal/service"
)

// WebhookHandler verifies and dispatches processor events. Events are
// acknowledged with 200 even when a handler drops them, so the processor
// does not retry what we deliberately ignore; only signature failures and
// our own storage failures are rejected.
type WebhookHandler struct {
	signingSecret string
	payments      *service.PaymentService
	connect       *service.ConnectService
}

// NewWebhookHandler creates a WebhookHandler verifying with the given
// signing secret.
func NewWebhookHandler(signingSecret string, payments *service.PaymentService, connect *service.ConnectService) *WebhookHandler {
	return &WebhookHandler{
		signingSecret: signingSecret,
		payments:      payments,
		connect:       connect,
	}
}

// Handle serves POST /api/stripe/webhook.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}

	slog.Info("webhook received", "type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return badRequest(c, "malformed event payload")
		}
		if err := h.payments.ConfirmIntentSucceeded(c.Context(), intent.ID); err != nil {
			slog.Error("failed to settle succeeded intent", "intent_id", intent.ID, "error", err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return badRequest(c, "malformed event payload")
		}
		if err := h.payments.ConfirmIntentFailed(c.Context(), intent.ID); err != nil {
			slog.Error("failed to record failed intent", "intent_id", intent.ID, "error", err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}

	case "account.updated":
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return badRequest(c, "malformed event payload")
		}
		if err := h.connect.RefreshAccount(c.Context(), account.ID, account.PayoutsEnabled, account.DetailsSubmitted); err != nil {
			slog.Error("failed to refresh account", "account_id", account.ID, "error", err)
			return c.SendStatus(fiber.StatusInternalServerError)
		}

	default:
		slog.Info("unhandled webhook event ignored", "type", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}
