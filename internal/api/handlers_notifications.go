// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
	"github.com/payflux/payflux/internal/notify"
)

type testNotificationRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Message     string `json:"message" validate:"required"`
}

// TestNotification sends an arbitrary SMS through the configured
// provider. Operator tooling; delivery is synchronous so the caller sees
// provider failures.
// POST /api/notifications/test
func (h *Handler) TestNotification(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req testNotificationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	err := h.sender.Send(r.Context(), &notify.Message{To: req.PhoneNumber, Body: req.Message})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("test", "failed").Inc()
		respondError(w, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to send SMS notification", err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues("test", "delivered").Inc()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test notification sent",
	}, started)
}

// ResendNotification rebuilds and resends the status notification for a
// stored transaction.
// POST /api/notifications/resend/{requestId}
func (h *Handler) ResendNotification(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := chi.URLParam(r, "requestId")

	tx, err := h.store.GetTransaction(r.Context(), requestID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	if err := h.sender.Send(r.Context(), notify.ResendMessage(tx)); err != nil {
		metrics.NotificationsTotal.WithLabelValues("resend", "failed").Inc()
		respondError(w, http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to send SMS notification", err)
		return
	}

	metrics.NotificationsTotal.WithLabelValues("resend", "delivered").Inc()
	logging.Info().Str("request_id", sanitizeLogValue(requestID)).Msg("Notification resent")
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notification resent",
	}, started)
}
