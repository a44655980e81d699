package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mt5_bridge/internal/auth"
)

type TokenRequest struct {
	APIKey   string `json:"api_key"`
	Operator string `json:"operator"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleToken exchanges the operator API key for a JWT.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.APIKey == "" {
		h.respondError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	if err := h.authService.VerifyKey(req.APIKey); err != nil {
		if errors.Is(err, auth.ErrDisabled) {
			h.respondError(w, http.StatusNotImplemented, "API authentication is not configured")
			return
		}

		h.logger.Warn("🚫 Invalid API key", slog.String("remote", r.RemoteAddr))
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = "operator"
	}

	token, expires, err := h.authService.GenerateToken(operator)
	if err != nil {
		h.logger.Error("Failed to generate token", slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respondJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expires})
}
