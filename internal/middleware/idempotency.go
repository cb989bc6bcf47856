package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/storage"
)

// Idempotency returns a middleware that caches responses by the
// Idempotency-Key header. A repeated key replays the first response instead
// of re-running the handler, which keeps client retries of payment routes
// from charging twice. Requests without a key pass through.
func Idempotency(store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		status, body, ok, err := store.GetIdempotencyKey(c.Context(), key)
		if err != nil {
			slog.Error("failed to check idempotency key", "key", key, "error", err)
		}
		if ok {
			slog.Info("idempotency hit, replaying cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		// Never cache server-side failures: the key would pin the client
		// to a transient outage and its retries could never succeed.
		if resStatus >= fiber.StatusInternalServerError {
			return nil
		}

		resBody := c.Response().Body()
		if err := store.PutIdempotencyKey(c.Context(), key, resStatus, resBody); err != nil {
			slog.Error("failed to save idempotency key", "key", key, "error", err)
		}

		return nil
	}
}
