package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/internal/infrastructure/persistence"
	"github.com/permitworks/backend/pkg/auth"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResult is the token plus the session it encodes.
type LoginResult struct {
	Token string             `json:"token"`
	User  models.UserSession `json:"user"`
}

// AuthService handles login and session validation.
type AuthService struct {
	users *persistence.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Login verifies credentials and issues a JWT. Wrong email and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewUnauthorizedError("invalid email or password")
		}
		return nil, appErrors.NewDependencyError("database", err)
	}

	if !auth.VerifyPassword(input.Password, user.PasswordHash) {
		return nil, appErrors.NewUnauthorizedError("invalid email or password")
	}

	session := models.UserSession{
		ID:        user.ID,
		CompanyID: user.CompanyID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
	}
	token, err := auth.GenerateToken(session)
	if err != nil {
		return nil, appErrors.NewInternalError("generate token", err)
	}
	return &LoginResult{Token: token, User: session}, nil
}

// ValidateSession parses a bearer token into the session it carries.
func (s *AuthService) ValidateSession(tokenString string) (*models.UserSession, error) {
	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		return nil, appErrors.NewUnauthorizedError("invalid or expired token")
	}
	return &claims.User, nil
}

// GetMe returns the caller's user row.
func (s *AuthService) GetMe(ctx context.Context, session *models.UserSession) (*models.User, error) {
	user, err := s.users.FindByID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFoundError("user", session.ID)
		}
		return nil, appErrors.NewDependencyError("database", err)
	}
	return user, nil
}
