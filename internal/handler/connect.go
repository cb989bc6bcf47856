package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/middleware"
	"github.com/arosales/juntas-seguras/internal/service"
)

// ConnectHandler serves the payee-account routes.
type ConnectHandler struct {
	connect *service.ConnectService
}

// NewConnectHandler creates a ConnectHandler over the connect service.
func NewConnectHandler(connect *service.ConnectService) *ConnectHandler {
	return &ConnectHandler{connect: connect}
}

// Status handles GET /api/stripe/connect.
func (h *ConnectHandler) Status(c *fiber.Ctx) error {
	status, err := h.connect.Status(c.Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"hasAccount":       status.HasAccount,
		"accountId":        status.AccountID,
		"payoutsEnabled":   status.PayoutsEnabled,
		"detailsSubmitted": status.DetailsSubmitted,
	})
}

type connectActionRequest struct {
	Action string `json:"action"`
}

// Act handles POST /api/stripe/connect: create the account or mint an
// onboarding or dashboard link.
func (h *ConnectHandler) Act(c *fiber.Ctx) error {
	var req connectActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	userID := middleware.UserID(c)
	var url string
	var err error
	switch req.Action {
	case "create":
		url, err = h.connect.CreateAccount(c.Context(), userID)
	case "onboarding":
		url, err = h.connect.OnboardingLink(c.Context(), userID)
	case "dashboard":
		url, err = h.connect.DashboardLink(c.Context(), userID)
	default:
		return badRequest(c, "action must be create, onboarding, or dashboard")
	}
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"url": url})
}
