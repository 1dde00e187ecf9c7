// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services accept primitives and return domain errors — they know nothing
// about HTTP. Handlers translate both directions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/auth"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/repository"
)

// AuthService handles registration, login, and account updates.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by Register and Login. It bundles the user record
// and the issued JWT so the handler can build the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account and signs the user in.
//
// Failure modes:
//   - apperror.ErrValidation if email or password is empty
//   - apperror.ErrConflict if the email is already registered
//
// The duplicate check is NOT done here with a lookup — the repository's
// Create is atomic (unique constraint), so concurrent registrations of
// the same email can't both succeed. One durable write per call.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "email and password are required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Plan:         model.PlanFree,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Normal outcome, not a server fault — don't log as error.
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a fresh token.
//
// Both "email not registered" and "wrong password" return the same
// apperror.ErrInvalidCredentials with the same message. Keeping the two
// paths merged is a requirement, not a style choice — see
// apperror.InvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/me handler after the middleware has validated the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdatePlan switches the user's plan tier and returns the updated record.
func (s *AuthService) UpdatePlan(ctx context.Context, userID string, plan model.Plan) (*model.User, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	if !plan.IsValid() {
		return nil, apperror.ValidationFailed("plan",
			fmt.Sprintf("plan must be %q or %q", model.PlanFree, model.PlanPremium))
	}

	if err := s.users.UpdatePlan(ctx, userID, plan); err != nil {
		return nil, err
	}

	s.logger.Info("plan updated",
		slog.String("userID", userID),
		slog.String("plan", string(plan)),
	)

	return s.users.GetByID(ctx, userID)
}

// ValidateToken validates a JWT string and returns the identity it
// asserts. Thin delegation so callers only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (auth.Identity, error) {
	id, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("service/auth: %w", err)
	}
	return id, nil
}

// normalizeEmail lowercases and trims the login key so lookups and the
// unique constraint see one canonical form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
