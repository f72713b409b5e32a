package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stagehall/models"
	"stagehall/services/accounts"
	"stagehall/services/sessions"
)

type accountsService interface {
	Authenticate(ctx context.Context, email, password string) (models.User, error)
}

var _ accountsService = (*accounts.Service)(nil)

type AuthHandler struct {
	Accounts accountsService
	Sessions *sessions.Service
}

func NewAuthHandler(accountsSvc accountsService, sessionsSvc *sessions.Service) *AuthHandler {
	return &AuthHandler{Accounts: accountsSvc, Sessions: sessionsSvc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an admin and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	session, err := h.Sessions.Create(user.ID, user.IsAdmin, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user": map[string]any{
			"id":      user.ID,
			"email":   user.Email,
			"name":    user.Name,
			"isAdmin": user.IsAdmin,
		},
	})
}

// Logout revokes the current session token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		respondError(w, http.StatusBadRequest, "no session token provided")
		return
	}
	if err := h.Sessions.Revoke(token); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
