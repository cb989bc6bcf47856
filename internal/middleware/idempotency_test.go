package middleware

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/arosales/juntas-seguras/internal/storage"
	"github.com/arosales/juntas-seguras/internal/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "juntas-mw-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	store := newTestStore(t)
	app := fiber.New()

	calls := 0
	app.Post("/pay", Idempotency(store), func(c *fiber.Ctx) error {
		calls++
		return c.JSON(fiber.Map{"attempt": calls})
	})

	req := httptest.NewRequest("POST", "/pay", nil)
	req.Header.Set("Idempotency-Key", "key-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	first, _ := io.ReadAll(resp.Body)

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("X-Idempotency-Hit"))
	second, _ := io.ReadAll(resp.Body)

	require.Equal(t, 1, calls, "handler must run once per key")
	require.Equal(t, string(first), string(second))
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	store := newTestStore(t)
	app := fiber.New()

	calls := 0
	app.Post("/pay", Idempotency(store), func(c *fiber.Ctx) error {
		calls++
		if calls == 1 {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "processor unavailable"})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("POST", "/pay", nil)
	req.Header.Set("Idempotency-Key", "key-1")

	// A transient failure must not be pinned to the key.
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	// The retry runs the handler again and succeeds.
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("X-Idempotency-Hit"))
	require.Equal(t, 2, calls)

	// The success is what gets cached for subsequent retries.
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("X-Idempotency-Hit"))
	require.Equal(t, 2, calls)
}

func TestIdempotencySkipsRequestsWithoutKey(t *testing.T) {
	store := newTestStore(t)
	app := fiber.New()

	calls := 0
	app.Post("/pay", Idempotency(store), func(c *fiber.Ctx) error {
		calls++
		return c.JSON(fiber.Map{"attempt": calls})
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/pay", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	require.Equal(t, 2, calls)
}
