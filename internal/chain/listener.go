// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
	"github.com/payflux/payflux/internal/models"
)

// EventHandler receives decoded program events from the listener.
// The webhook normalizer satisfies this interface.
type EventHandler interface {
	HandlePaymentCreated(ctx context.Context, ev *models.PaymentCreatedEvent) (*models.Transaction, error)
	HandlePaymentFulfilled(ctx context.Context, ev *models.PaymentFulfilledEvent) (*models.Transaction, error)
}

// Listener maintains a WebSocket subscription to the stream provider and
// feeds decoded program events to the handler. It complements the webhook
// ingress with lower-latency delivery; both paths converge on the same
// normalizer, whose replay tolerance covers double delivery.
//
// The connection is re-established after ReconnectDelay on any read
// failure, and kept alive with pings every PingInterval. Implements
// suture.Service via Serve.
type Listener struct {
	cfg     *config.ChainConfig
	handler EventHandler
}

// NewListener creates a chain event listener. It does not connect until
// Serve is called.
func NewListener(cfg *config.ChainConfig, handler EventHandler) *Listener {
	return &Listener{cfg: cfg, handler: handler}
}

// streamEvent is the provider's event notification shape: the event name
// plus the program event payload inline.
type streamEvent struct {
	Name string `json:"name"`

	RequestID        string                   `json:"requestId"`
	Sender           string                   `json:"sender"`
	Amount           int64                    `json:"amount"`
	RecipientDetails *models.RecipientDetails `json:"recipientDetails"`
	MarketMaker      string                   `json:"marketMaker"`
}

// Serve implements suture.Service: connect, consume, reconnect on failure,
// until the context is canceled.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		if err := l.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn().Err(err).
				Dur("reconnect_delay", l.cfg.ReconnectDelay).
				Msg("Chain stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.ReconnectDelay):
			metrics.ChainStreamReconnects.Inc()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (l *Listener) String() string {
	return "chain-listener"
}

// runConnection dials the provider, subscribes to the escrow program, and
// consumes events until the connection drops or the context is canceled.
func (l *Listener) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var header http.Header
	if l.cfg.APIKey != "" {
		header = http.Header{"Authorization": []string{l.cfg.APIKey}}
	}

	conn, resp, err := dialer.DialContext(ctx, l.cfg.WebSocketURL, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	if err := l.subscribe(conn); err != nil {
		return fmt.Errorf("program subscribe: %w", err)
	}
	logging.Info().Str("program_id", l.cfg.ProgramID).Msg("Connected to chain stream")

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go l.keepAlive(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		l.dispatch(ctx, data)
	}
}

// subscribe sends the JSON-RPC account subscription for the escrow program.
func (l *Listener) subscribe(conn *websocket.Conn) error {
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "accountSubscribe",
		"params": []interface{}{
			l.cfg.ProgramID,
			map[string]string{
				"encoding":   "jsonParsed",
				"commitment": "confirmed",
			},
		},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// keepAlive pings the provider until the context or connection ends.
func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one stream message and routes it to the handler.
// Malformed or unrecognized messages are logged and dropped; a bad event
// must not tear down the subscription.
func (l *Listener) dispatch(ctx context.Context, data []byte) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logging.Warn().Err(err).Msg("Failed to parse chain stream message")
		return
	}

	switch ev.Name {
	case "PaymentCreated":
		metrics.ChainStreamEventsTotal.WithLabelValues(ev.Name).Inc()
		if ev.RecipientDetails == nil {
			logging.Warn().Str("request_id", ev.RequestID).Msg("PaymentCreated event missing recipient details")
			return
		}
		created := &models.PaymentCreatedEvent{
			RequestID:        ev.RequestID,
			Sender:           ev.Sender,
			Amount:           ev.Amount,
			RecipientDetails: *ev.RecipientDetails,
		}
		if _, err := l.handler.HandlePaymentCreated(ctx, created); err != nil {
			logging.Error().Err(err).Str("request_id", ev.RequestID).Msg("Failed to process PaymentCreated from stream")
		}
	case "PaymentFulfilled":
		metrics.ChainStreamEventsTotal.WithLabelValues(ev.Name).Inc()
		fulfilled := &models.PaymentFulfilledEvent{
			RequestID:   ev.RequestID,
			MarketMaker: ev.MarketMaker,
			Amount:      ev.Amount,
		}
		if _, err := l.handler.HandlePaymentFulfilled(ctx, fulfilled); err != nil {
			logging.Error().Err(err).Str("request_id", ev.RequestID).Msg("Failed to process PaymentFulfilled from stream")
		}
	default:
		// Subscription acks and unrelated notifications end up here.
		logging.Debug().Str("name", ev.Name).Msg("Ignoring chain stream message")
	}
}
