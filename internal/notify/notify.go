// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify delivers SMS notifications to payment recipients.
//
// Delivery goes through the Sender interface. Two implementations exist:
// LogSender, which writes messages to the log (the default, so the relay
// runs without provider credentials), and TermiiSender, an HTTP client
// for the Termii SMS gateway. Production senders are wrapped in
// BreakerSender so a failing provider cannot stall event processing.
package notify

import (
	"context"
	"fmt"

	"github.com/payflux/payflux/internal/config"
)

// Message is a single SMS to deliver.
type Message struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Sender delivers SMS messages. Implementations must be safe for
// concurrent use.
type Sender interface {
	// Send delivers one message. An error means the message was not
	// delivered and may be retried by the dispatcher.
	Send(ctx context.Context, msg *Message) error

	// Name identifies the provider for logs and metrics.
	Name() string
}

// NewSender builds the configured sender. The Termii provider is wrapped
// in a circuit breaker.
func NewSender(cfg *config.SMSConfig) (Sender, error) {
	switch cfg.Provider {
	case "log":
		return NewLogSender(), nil
	case "termii":
		return NewBreakerSender(NewTermiiSender(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}
