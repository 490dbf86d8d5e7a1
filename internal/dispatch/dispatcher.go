// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch queues recipient notifications and delivers them
// asynchronously through the configured SMS sender.
//
// Event processing must not block on a slow SMS provider, so the
// processor only publishes an envelope to an in-process Watermill
// pub/sub; a router consumer performs the actual provider call with
// retry and a poison topic for messages that exhaust their retries.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
	"github.com/payflux/payflux/internal/notify"
)

// Topics of the notification pub/sub.
const (
	TopicSMS    = "notifications.sms"
	TopicPoison = "notifications.poison"
)

// Envelope is the queued notification payload.
type Envelope struct {
	Kind      string `json:"kind"` // "pending" or "fulfilled"
	RequestID string `json:"requestId"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

// Dispatcher owns the notification pub/sub and its delivery router.
// It implements suture.Service via Serve.
type Dispatcher struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	sender notify.Sender
}

// NewDispatcher wires the pub/sub, the delivery handler, and the poison
// consumer.
func NewDispatcher(cfg *config.DispatchConfig, sender notify.Sender) (*Dispatcher, error) {
	logger := newWatermillLogger()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.OutputBuffer),
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create dispatch router: %w", err)
	}

	d := &Dispatcher{pubsub: pubsub, router: router, sender: sender}

	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			metrics.DispatchRetriesTotal.Inc()
		},
	}
	router.AddMiddleware(retry.Middleware)

	poison, err := middleware.PoisonQueue(pubsub, TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("create poison queue: %w", err)
	}
	router.AddMiddleware(poison)

	router.AddConsumerHandler("sms-delivery", TopicSMS, pubsub, d.deliver)
	router.AddConsumerHandler("sms-poison", TopicPoison, pubsub, d.drainPoison)

	return d, nil
}

// Serve implements suture.Service: run the delivery router until the
// context is canceled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	return d.router.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (d *Dispatcher) String() string {
	return "notification-dispatcher"
}

// Running closes once the router has started all handlers. Publishing
// before that on a non-persistent pub/sub would drop messages.
func (d *Dispatcher) Running() chan struct{} {
	return d.router.Running()
}

// Close shuts down the router and the pub/sub, releasing any queued
// messages.
func (d *Dispatcher) Close() error {
	if err := d.router.Close(); err != nil {
		return err
	}
	return d.pubsub.Close()
}

// Publisher returns the queueing side of the dispatcher, used by the
// event processor. Publishes block until the router is running.
func (d *Dispatcher) Publisher() *Publisher {
	return &Publisher{pubsub: d.pubsub, running: d.router.Running()}
}

// deliver performs one SMS provider call. A returned error triggers the
// retry middleware; exhausted messages land on the poison topic.
func (d *Dispatcher) deliver(msg *message.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		// Unparseable envelopes can never succeed; hand them straight
		// to the poison topic by failing without retry value.
		return fmt.Errorf("unmarshal notification envelope: %w", err)
	}

	err := d.sender.Send(msg.Context(), &notify.Message{To: env.To, Body: env.Body})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(env.Kind, "failed").Inc()
		return fmt.Errorf("deliver %s notification for %s: %w", env.Kind, env.RequestID, err)
	}

	metrics.NotificationsTotal.WithLabelValues(env.Kind, "delivered").Inc()
	logging.Debug().
		Str("kind", env.Kind).
		Str("request_id", env.RequestID).
		Msg("Notification delivered")
	return nil
}

// drainPoison logs notifications that exhausted their retries. Delivery
// is best-effort; the ledger remains the source of truth and operators
// can resend from it.
func (d *Dispatcher) drainPoison(msg *message.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logging.Error().Str("message_uuid", msg.UUID).Msg("Dropping unparseable poisoned notification")
		return nil
	}

	metrics.NotificationsTotal.WithLabelValues(env.Kind, "poisoned").Inc()
	logging.Error().
		Str("kind", env.Kind).
		Str("request_id", env.RequestID).
		Str("to", env.To).
		Msg("Notification delivery abandoned after retries")
	return nil
}
