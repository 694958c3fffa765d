// Package http provides the HTTP handlers and routing of the API sandbox.
package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/MedKeeper/internal/middleware"
	"github.com/atinyakov/MedKeeper/internal/models"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Signup registers a regular account and returns its id.
	Signup(ctx context.Context, req models.SignupRequest) (int64, error)
	// Login verifies credentials and issues an access token.
	Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error)
	// CreateUser registers an account on behalf of an administrator.
	CreateUser(ctx context.Context, actorID int64, req models.NewUserRequest) (int64, error)
}

// AuthHandler handles HTTP requests for signup, login and account creation.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// Signup handles POST /api/signup.
// It expects a JSON body with "username", "password" and "display_name"
// and answers 201 with a confirmation message.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.AuthService.Signup(r.Context(), req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.Message{Message: "User created successfully"})
}

// Login handles POST /api/login.
// On success it returns the bearer token and whether the account is an
// administrator; wrong credentials yield 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.AuthService.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser handles POST /api/users, available to administrators only.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.NewUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.AuthService.CreateUser(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.UserCreated{Message: "User created successfully", UserID: id})
}
