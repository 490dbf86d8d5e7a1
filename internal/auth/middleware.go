// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/models"
)

type contextKey string

// claimsKey carries the validated operator claims through the request
// context.
const claimsKey contextKey = "auth.claims"

// Authenticator is the HTTP guard for operator endpoints.
type Authenticator struct {
	mode string
	jwt  *JWTManager
}

// NewAuthenticator builds the guard for the configured auth mode. In
// mode "none" the middleware is a no-op.
func NewAuthenticator(cfg *config.SecurityConfig) (*Authenticator, error) {
	a := &Authenticator{mode: cfg.AuthMode}
	if cfg.AuthMode == "jwt" {
		mgr, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		a.jwt = mgr
	}
	return a, nil
}

// Enabled reports whether requests are actually authenticated.
func (a *Authenticator) Enabled() bool {
	return a.mode == "jwt"
}

// Middleware validates the Bearer token on each request and stores the
// claims in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, "Missing bearer token")
			return
		}

		claims, err := a.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// ClaimsFromContext returns the operator claims stored by the
// middleware, or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    "AUTHENTICATION_ERROR",
			Message: message,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
