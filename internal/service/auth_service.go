package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arosales/juntas-seguras/internal/auth"
	"github.com/arosales/juntas-seguras/internal/models"
)

// AuthService registers users and issues session tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
	}
}

// Session is an authenticated user plus their token.
type Session struct {
	User  *models.User
	Token string
}

// Register creates a new user account and returns a session for it.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (*Session, error) {
	if email == "" || displayName == "" {
		return nil, errInvalidInput("email and display name are required")
	}

	user, err := s.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		slog.Warn("registration failed", "email", email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, errAlreadyExists(err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, errInvalidInput(err.Error())
		default:
			return nil, errInternal("could not register user")
		}
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		return nil, errInternal("could not register user")
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return &Session{User: user, Token: token}, nil
}

// Login authenticates a user and returns a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, errUnauthorized(auth.ErrInvalidCredentials.Error())
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		slog.Warn("login failed", "email", email)
		return nil, errUnauthorized(auth.ErrInvalidCredentials.Error())
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		return nil, errInternal("could not log in")
	}

	slog.Info("user logged in", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}
