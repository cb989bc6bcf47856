package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/auth"
)

const (
	// UserIDKey is the request-locals key for the authenticated user ID.
	UserIDKey = "user_id"
	// EmailKey is the request-locals key for the authenticated user's email.
	EmailKey = "email"
)

// UserID extracts the authenticated user ID from the request.
// Returns empty string if not found.
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(UserIDKey).(string)
	return userID
}

// Email extracts the authenticated user's email from the request.
// Returns empty string if not found.
func Email(c *fiber.Ctx) string {
	email, _ := c.Locals(EmailKey).(string)
	return email
}

// RequireAuth returns a middleware that validates JWT tokens and requires
// authentication. It extracts the token from the Authorization header,
// validates it, and stores the user ID and email in the request locals.
func RequireAuth(jwtManager *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, auth.ErrMissingToken.Error())
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, auth.ErrInvalidToken.Error())
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			return unauthorized(c, auth.ErrInvalidToken.Error())
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(EmailKey, claims.Email)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}
