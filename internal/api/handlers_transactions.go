// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/payflux/payflux/internal/logging"
)

// ListTransactions returns the full ledger, newest first.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	txs, err := h.store.ListTransactions(r.Context())
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, txs, started)
}

// GetTransaction returns one transaction by request ID.
// GET /api/transactions/{requestId}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := chi.URLParam(r, "requestId")

	tx, err := h.store.GetTransaction(r.Context(), requestID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, tx, started)
}

type verifyNINRequest struct {
	NIN string `json:"nin" validate:"required,nin"`
}

// VerifyNIN checks the recipient's NIN with the identity provider and
// marks the transaction verified on success.
// POST /api/transactions/{requestId}/verify-nin
func (h *Handler) VerifyNIN(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := chi.URLParam(r, "requestId")

	var req verifyNINRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	// The transaction must exist before we spend an identity check on it.
	if _, err := h.store.GetTransaction(r.Context(), requestID); err != nil {
		respondMappedError(w, err)
		return
	}

	ok, err := h.verifier.VerifyNIN(r.Context(), req.NIN)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PROCESSING_ERROR", "Identity verification failed", err)
		return
	}
	if !ok {
		respondSuccess(w, http.StatusOK, map[string]bool{"success": false}, started)
		return
	}

	if _, err := h.store.SetNINVerified(r.Context(), requestID); err != nil {
		respondMappedError(w, err)
		return
	}

	logging.Info().Str("request_id", sanitizeLogValue(requestID)).Msg("NIN verified")
	respondSuccess(w, http.StatusOK, map[string]bool{"success": true}, started)
}

type confirmReceiptRequest struct {
	USSDCode string `json:"ussdCode" validate:"required"`
}

// ConfirmReceipt records the recipient's USSD confirmation and moves the
// transaction to its terminal stage.
// POST /api/transactions/{requestId}/confirm-receipt
func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := chi.URLParam(r, "requestId")

	var req confirmReceiptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	tx, err := h.store.ConfirmReceipt(r.Context(), requestID, req.USSDCode)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	logging.Info().Str("request_id", sanitizeLogValue(requestID)).Msg("Receipt confirmed")
	respondSuccess(w, http.StatusOK, tx, started)
}
