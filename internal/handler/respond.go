// Package handler exposes the JSON API over fiber. Amounts cross this
// boundary in dollars; everything below it works in cents.
package handler

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/service"
)

// fail renders a service error as the {error, code} JSON envelope the UI
// expects. Missing member names ride along for contribution gaps.
func fail(c *fiber.Ctx, err error) error {
	svcErr := service.AsError(err)
	body := fiber.Map{
		"error": svcErr.Message,
		"code":  svcErr.Code,
	}
	if len(svcErr.Missing) > 0 {
		body["missingMembers"] = svcErr.Missing
	}
	return c.Status(svcErr.Status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  service.CodeInvalidInput,
	})
}

// toCents converts a dollar amount from the API into cents.
func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// toDollars converts cents back into the dollar amounts the API speaks.
func toDollars(cents int64) float64 {
	return float64(cents) / 100
}
