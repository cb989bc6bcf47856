package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/service"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates an AuthHandler over the auth service.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	session, err := h.auth.Register(c.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(session))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	session, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sessionResponse(session))
}

func sessionResponse(session *service.Session) fiber.Map {
	return fiber.Map{
		"user":  userResponse(session.User),
		"token": session.Token,
	}
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":          user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"createdAt":   user.CreatedAt,
	}
}
