// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
	"github.com/payflux/payflux/internal/models"
)

// maxWebhookBody caps webhook payloads at 4 MiB.
const maxWebhookBody = 4 << 20

// signatureHeader carries the hex HMAC-SHA256 of the raw body when
// webhook signing is configured.
const signatureHeader = "X-Webhook-Signature"

// Webhook ingests a stream-provider batch of matched transactions.
//
// Elements are applied independently and in order; the batch is not
// atomic. The response always carries the per-element results, with
// status 200 when every element processed or skipped and 500 when any
// element failed.
// POST /webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body", err)
		return
	}

	if secret := h.cfg.Chain.WebhookSecret; secret != "" {
		if !verifySignature(secret, body, r.Header.Get(signatureHeader)) {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid webhook signature", nil)
			return
		}
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}

	results, failed := h.processor.ProcessBatch(r.Context(), &req)

	logging.Info().
		Int("elements", len(results)).
		Bool("failed", failed).
		Msg("Webhook batch processed")

	if failed {
		metrics.WebhookBatchesTotal.WithLabelValues("partial_failure").Inc()
		// Failed elements keep earlier elements' effects; the results
		// list tells the provider exactly which elements to replay.
		respondJSON(w, http.StatusInternalServerError, &models.APIResponse{
			Status:   "error",
			Data:     map[string]interface{}{"results": results},
			Metadata: models.Metadata{Timestamp: time.Now().UTC(), QueryTimeMS: time.Since(started).Milliseconds()},
			Error:    &models.APIError{Code: "PROCESSING_ERROR", Message: "One or more webhook elements failed"},
		})
		return
	}

	metrics.WebhookBatchesTotal.WithLabelValues("ok").Inc()
	respondSuccess(w, http.StatusOK, map[string]interface{}{"results": results}, started)
}

// verifySignature checks the hex HMAC-SHA256 of the body in constant
// time.
func verifySignature(secret string, body []byte, header string) bool {
	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
