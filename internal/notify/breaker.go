// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
)

// BreakerSender wraps a Sender with a circuit breaker so a degraded SMS
// provider fails fast instead of holding dispatcher workers on timeouts.
//
// The breaker uses real time for its recovery window; tests should
// exercise the wrapped sender directly.
type BreakerSender struct {
	inner Sender
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerSender wraps a sender with circuit breaker protection.
// The circuit opens after a 60% failure rate over at least 10 requests
// within a one-minute window, and probes recovery after 2 minutes.
func NewBreakerSender(inner Sender) *BreakerSender {
	name := "sms-" + inner.Name()

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Warn().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("SMS circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerSender{inner: inner, cb: cb}
}

// Name implements Sender.
func (s *BreakerSender) Name() string { return s.inner.Name() }

// Send implements Sender.
func (s *BreakerSender) Send(ctx context.Context, msg *Message) error {
	name := s.cb.Name()
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.inner.Send(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		}
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
