// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payflux/payflux/internal/auth"
	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/middleware"
)

// NewRouter builds the full HTTP routing tree.
//
// The webhook ingress and health endpoints stay outside the operator
// guard: the stream provider authenticates with the webhook signature,
// not a bearer token.
func NewRouter(cfg *config.Config, h *Handler, authenticator *auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Prometheus)

	// Health and metrics, unauthenticated.
	r.Route("/api/health", func(r chi.Router) {
		r.Get("/", h.HealthLive)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Stream-provider ingress.
	r.Post("/webhook", h.Webhook)

	// Login gets its own tight rate limit against brute force.
	r.With(httprate.LimitByIP(5, cfg.Security.RateLimitWindow)).
		Post("/api/auth/login", h.Login)

	// Operator API.
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(
			cfg.Security.RateLimitReqs,
			cfg.Security.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(authenticator.Middleware)

		r.Get("/transactions", h.ListTransactions)
		r.Get("/transactions/{requestId}", h.GetTransaction)
		r.Post("/transactions/{requestId}/verify-nin", h.VerifyNIN)
		r.Post("/transactions/{requestId}/confirm-receipt", h.ConfirmReceipt)

		r.Post("/notifications/test", h.TestNotification)
		r.Post("/notifications/resend/{requestId}", h.ResendNotification)
	})

	return r
}
