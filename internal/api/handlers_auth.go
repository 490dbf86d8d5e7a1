// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/payflux/payflux/internal/logging"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges admin credentials for a bearer token. Only available
// when auth_mode is jwt.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.jwt == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Authentication is not enabled", nil)
		return
	}

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	if !h.checker.Check(req.Username, req.Password) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	token, err := h.jwt.GenerateToken(req.Username, "admin")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", err)
		return
	}

	respondSuccess(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.cfg.Security.SessionTimeout).UTC(),
	}, started)
}
