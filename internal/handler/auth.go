package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/auth"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/service"
)

// AuthHandler exposes signup, login, and account endpoints.
//
// The token travels in the response body (not a cookie): the dashboard
// SPA stores it client-side and sends it back as a bearer header, which
// is also what keeps the API curl-friendly.
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// credentialsRequest is the body of both /auth/signup and /auth/login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the success body of both auth endpoints.
type authResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	User    model.UserInfo `json:"user"`
}

// HandleSignup registers a new account.
//
// HTTP: POST /auth/signup
// BODY: {"email": "...", "password": "..."}
//
// 201 with token + user on success; 400 on missing fields or duplicate
// email; 500 on anything unexpected.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if !isClientFault(err) {
			h.logger.Error("signup failed", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		Token:   result.Token,
		User:    result.User.Info(),
	})
}

// HandleLogin authenticates an existing account.
//
// HTTP: POST /auth/login
//
// The 400 for "unknown email" and the 400 for "wrong password" are
// byte-identical — see apperror.InvalidCredentials.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !isClientFault(err) {
			h.logger.Error("login failed", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Logged in successfully",
		Token:   result.Token,
		User:    result.User.Info(),
	})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth sets the identity in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but be safe.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed",
			slog.String("userID", id.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Info())
}

// HandleUpdatePlan switches the caller's plan tier.
//
// HTTP: PUT /api/me/plan
// BODY: {"plan": "free" | "premium"}
func (h *AuthHandler) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "authentication required"})
		return
	}

	var req struct {
		Plan model.Plan `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.authService.UpdatePlan(r.Context(), id.UserID, req.Plan)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Info())
}

// isClientFault reports whether err is an expected 4xx-class domain error
// rather than a server failure worth an error-level log line.
func isClientFault(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrInvalidCredentials) ||
		errors.Is(err, apperror.ErrNotFound)
}
