package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/middleware"
	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/service"
)

// PoolHandler serves the pool routes.
type PoolHandler struct {
	pools *service.PoolService
}

// NewPoolHandler creates a PoolHandler over the pool service.
func NewPoolHandler(pools *service.PoolService) *PoolHandler {
	return &PoolHandler{pools: pools}
}

type createPoolRequest struct {
	Name string `json:"name"`
	// ContributionAmount in dollars.
	ContributionAmount float64 `json:"contributionAmount"`
	Members            []struct {
		UserID   string `json:"userId"`
		Position int    `json:"position"`
	} `json:"members"`
}

// Create handles POST /api/pools.
func (h *PoolHandler) Create(c *fiber.Ctx) error {
	var req createPoolRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	members := make([]service.MemberInput, len(req.Members))
	for i, m := range req.Members {
		members[i] = service.MemberInput{UserID: m.UserID, Position: m.Position}
	}

	pool, err := h.pools.CreatePool(c.Context(), middleware.UserID(c), req.Name, toCents(req.ContributionAmount), members)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(poolResponse(pool))
}

// Get handles GET /api/pools/:id.
func (h *PoolHandler) Get(c *fiber.Ctx) error {
	pool, err := h.pools.GetPool(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(poolResponse(pool))
}

func poolResponse(pool *models.Pool) fiber.Map {
	members := make([]fiber.Map, len(pool.Members))
	for i, m := range pool.Members {
		members[i] = fiber.Map{
			"userId":         m.UserID,
			"name":           m.Name,
			"role":           m.Role,
			"position":       m.Position,
			"status":         m.Status,
			"payoutReceived": m.PayoutReceived,
		}
	}

	transactions := make([]fiber.Map, len(pool.Transactions))
	for i, tx := range pool.Transactions {
		transactions[i] = fiber.Map{
			"id":        tx.ID,
			"userId":    tx.UserID,
			"member":    tx.MemberName,
			"type":      tx.Type,
			"amount":    toDollars(tx.Amount),
			"round":     tx.Round,
			"status":    tx.Status,
			"paymentId": tx.PaymentID,
			"createdAt": tx.CreatedAt,
		}
	}

	return fiber.Map{
		"id":                 pool.ID,
		"name":               pool.Name,
		"contributionAmount": toDollars(pool.ContributionAmount),
		"currentRound":       pool.CurrentRound,
		"totalAmount":        toDollars(pool.TotalAmount),
		"status":             pool.Status,
		"members":            members,
		"transactions":       transactions,
		"createdAt":          pool.CreatedAt,
	}
}
