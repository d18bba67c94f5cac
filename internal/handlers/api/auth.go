package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zzpfin/api/internal/auth"
	"github.com/zzpfin/api/internal/middleware"
)

// AuthHandler handles registration, login and 2FA management.
type AuthHandler struct {
	authSvc *auth.Service
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// RegisterPublicRoutes registers the routes that need no token.
func (h *AuthHandler) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
}

// RegisterRoutes registers the authenticated 2FA management routes.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/totp/setup", h.SetupTOTP)
	mux.HandleFunc("POST /api/v1/auth/totp/confirm", h.ConfirmTOTP)
	mux.HandleFunc("POST /api/v1/auth/totp/disable", h.DisableTOTP)
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params auth.RegisterParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	user, err := h.authSvc.Register(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "email address is already taken"})
		case errors.Is(err, auth.ErrEmptyPassword):
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: "password cannot be empty"})
		default:
			h.logger.Error("registration failed", "error", err)
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id":   user.ID,
		"tenant_id": user.TenantID,
		"email":     user.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	pair, err := h.authSvc.Login(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTOTPRequired):
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "TOTP code required"})
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidTOTPCode), errors.Is(err, auth.ErrEmptyPassword):
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "invalid credentials"})
		default:
			h.logger.Error("login failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	pair, err := h.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "invalid or expired token"})
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// SetupTOTP handles POST /api/v1/auth/totp/setup.
func (h *AuthHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "authentication required"})
		return
	}

	setup, err := h.authSvc.SetupTOTP(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrTOTPAlreadySetup) {
			writeJSON(w, http.StatusConflict, errorJSON{Error: "two-factor authentication is already set up"})
			return
		}
		h.logger.Error("TOTP setup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret": setup.Secret,
		"url":    setup.URL,
	})
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP handles POST /api/v1/auth/totp/confirm.
func (h *AuthHandler) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "authentication required"})
		return
	}

	var req totpCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	codes, err := h.authSvc.ConfirmTOTP(r.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidTOTPCode):
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "invalid TOTP code"})
		case errors.Is(err, auth.ErrTOTPAlreadySetup), errors.Is(err, auth.ErrTOTPNotSetup):
			writeJSON(w, http.StatusConflict, errorJSON{Error: err.Error()})
		default:
			h.logger.Error("TOTP confirm failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recovery_codes": codes})
}

// DisableTOTP handles POST /api/v1/auth/totp/disable.
func (h *AuthHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "authentication required"})
		return
	}

	var req totpCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid request body"})
		return
	}

	if err := h.authSvc.DisableTOTP(r.Context(), userID, req.Code); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidTOTPCode):
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "invalid TOTP code"})
		case errors.Is(err, auth.ErrTOTPNotSetup):
			writeJSON(w, http.StatusConflict, errorJSON{Error: "two-factor authentication is not set up"})
		default:
			h.logger.Error("TOTP disable failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
