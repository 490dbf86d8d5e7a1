// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"

	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
)

// LogSender writes messages to the log instead of delivering them. It is
// the default provider so the relay works end-to-end without SMS
// credentials.
type LogSender struct{}

// NewLogSender creates a log-only sender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Name implements Sender.
func (s *LogSender) Name() string { return "log" }

// Send implements Sender. It never fails.
func (s *LogSender) Send(_ context.Context, msg *Message) error {
	logging.Info().
		Str("to", msg.To).
		Str("body", msg.Body).
		Msg("SMS (log provider)")
	metrics.NotificationSendDuration.WithLabelValues(s.Name()).Observe(0)
	return nil
}
