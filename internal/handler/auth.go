package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

// minPasswordLength is the boundary rule for login payloads and new
// passwords.
const minPasswordLength = 8

// AuthHandler serves the admin session endpoints: login, profile, and
// password change.
type AuthHandler struct {
	store   store.Store
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st store.Store, authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: st, authSvc: authSvc, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	Admin adminBrief `json:"admin"`
}

type adminBrief struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}

// Login authenticates an admin and returns a session token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	token, admin, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		Admin: adminBrief{ID: admin.ID, Email: admin.Email},
	})
}

// Profile returns the authenticated admin's account details.
// GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	admin, err := h.store.GetAdminByID(r.Context(), principal.AdminID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Admin not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           admin.ID,
		"email":        admin.Email,
		"display_name": admin.DisplayName,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword verifies the current password and replaces the stored hash.
// PATCH /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current and new passwords are required")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "New password must be at least 8 characters")
		return
	}

	err := h.authSvc.ChangePassword(r.Context(), principal.AdminID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated"})
	case errors.Is(err, service.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, service.ErrSamePassword):
		writeError(w, http.StatusBadRequest, "New password must differ from the current password")
	default:
		writeStoreError(w, h.logger, err, "Admin not found")
	}
}
