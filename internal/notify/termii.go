// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/metrics"
)

// TermiiSender delivers SMS through the Termii HTTP API.
//
// A client-side rate limiter throttles outbound calls to stay under the
// provider's account limits; Send blocks on the limiter until the
// context expires.
type TermiiSender struct {
	cfg     *config.SMSConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewTermiiSender creates a Termii API client from configuration.
func NewTermiiSender(cfg *config.SMSConfig) *TermiiSender {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &TermiiSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name implements Sender.
func (s *TermiiSender) Name() string { return "termii" }

// termiiRequest is the Termii send-SMS payload.
type termiiRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// termiiResponse is the subset of the Termii response the relay inspects.
type termiiResponse struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

// Send implements Sender.
func (s *TermiiSender) Send(ctx context.Context, msg *Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limiter: %w", err)
	}

	start := time.Now()
	err := s.send(ctx, msg)
	metrics.NotificationSendDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	return err
}

func (s *TermiiSender) send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(termiiRequest{
		To:      msg.To,
		From:    s.cfg.SenderID,
		SMS:     msg.Body,
		Type:    "plain",
		Channel: "generic",
		APIKey:  s.cfg.APIKey,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := s.cfg.BaseURL + "/api/sms/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = []byte("(failed to read response)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, string(body))
	}

	var tr termiiResponse
	if err := json.Unmarshal(body, &tr); err == nil && tr.Code != "" && tr.Code != "ok" {
		return fmt.Errorf("sms provider rejected message: %s (%s)", tr.Message, tr.Code)
	}
	return nil
}
