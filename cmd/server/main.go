// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the PayFlux relay server.
//
// The relay bridges an on-chain escrow program to the fiat world: it
// ingests program events (stream-provider webhooks, optionally a direct
// WebSocket subscription), maintains the transaction ledger in DuckDB,
// notifies recipients by SMS, and serves the operator HTTP API.
//
// Components start in order: configuration (Koanf v2, layered
// defaults/file/env), logging (zerolog), DuckDB ledger, SMS sender,
// notification dispatcher, event processor, HTTP API. Long-running
// services run under a suture supervision tree and shut down gracefully
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/payflux/payflux/internal/api"
	"github.com/payflux/payflux/internal/auth"
	"github.com/payflux/payflux/internal/chain"
	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/database"
	"github.com/payflux/payflux/internal/dispatch"
	"github.com/payflux/payflux/internal/events"
	"github.com/payflux/payflux/internal/identity"
	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/notify"
	"github.com/payflux/payflux/internal/supervisor"
	"github.com/payflux/payflux/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Relay failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting PayFlux relay")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sender, err := notify.NewSender(&cfg.SMS)
	if err != nil {
		return fmt.Errorf("configure sms sender: %w", err)
	}
	logging.Info().Str("provider", sender.Name()).Msg("SMS sender configured")

	dispatcher, err := dispatch.NewDispatcher(&cfg.Dispatch, sender)
	if err != nil {
		return fmt.Errorf("configure notification dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close dispatcher")
		}
	}()

	processor := events.NewProcessor(db, dispatcher.Publisher())

	handler, err := api.NewHandler(cfg, db, processor, sender, identity.NewStubVerifier())
	if err != nil {
		return fmt.Errorf("configure api handlers: %w", err)
	}
	authenticator, err := auth.NewAuthenticator(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configure authentication: %w", err)
	}
	if cfg.IsProduction() && !authenticator.Enabled() {
		logging.Warn().Msg("Operator API is unauthenticated in production; set AUTH_MODE=jwt")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, handler, authenticator),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.Server.Timeout})
	tree.AddIngestService(dispatcher)
	if cfg.Chain.ListenerEnabled {
		tree.AddIngestService(chain.NewListener(&cfg.Chain, processor))
		logging.Info().Str("url", cfg.Chain.WebSocketURL).Msg("Chain stream listener enabled")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Relay ready")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Relay stopped")
	return nil
}
