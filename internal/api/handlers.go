// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP surface of the relay: the operator query and
// command endpoints, the stream-provider webhook ingress, health checks,
// and the Prometheus exposition endpoint. Routing uses chi.
package api

import (
	"context"

	"github.com/payflux/payflux/internal/auth"
	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/identity"
	"github.com/payflux/payflux/internal/models"
	"github.com/payflux/payflux/internal/notify"
)

// Store is the ledger surface the API reads and commands.
type Store interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, requestID string) (*models.Transaction, error)
	SetNINVerified(ctx context.Context, requestID string) (*models.Transaction, error)
	ConfirmReceipt(ctx context.Context, requestID, ussdCode string) (*models.Transaction, error)
	Ping(ctx context.Context) error
}

// BatchProcessor applies webhook batches; implemented by events.Processor.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, req *models.WebhookRequest) ([]models.WebhookElementResult, bool)
}

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	cfg       *config.Config
	store     Store
	processor BatchProcessor
	sender    notify.Sender
	verifier  identity.Verifier

	// nil when auth_mode is none; login returns 404 in that case.
	jwt     *auth.JWTManager
	checker *auth.CredentialChecker
}

// NewHandler wires the API handlers.
func NewHandler(cfg *config.Config, store Store, processor BatchProcessor, sender notify.Sender, verifier identity.Verifier) (*Handler, error) {
	h := &Handler{
		cfg:       cfg,
		store:     store,
		processor: processor,
		sender:    sender,
		verifier:  verifier,
	}

	if cfg.Security.AuthMode == "jwt" {
		jwt, err := auth.NewJWTManager(&cfg.Security)
		if err != nil {
			return nil, err
		}
		checker, err := auth.NewCredentialChecker(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			return nil, err
		}
		h.jwt = jwt
		h.checker = checker
	}
	return h, nil
}
