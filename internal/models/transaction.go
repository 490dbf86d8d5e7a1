// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the shared data structures of the relay: the
// persisted transaction record, the on-chain event shapes, and the API
// response envelope.
package models

import "time"

// TransactionStatus is the persisted lifecycle status of a transaction.
//
// Only two values are stored. The richer four-stage view shown to clients
// (pending, fulfilled, verified, completed) is derived from the status plus
// the market maker and verification flags; see Transaction.Stage.
type TransactionStatus string

const (
	// StatusPending means the payment has been created on-chain and is
	// waiting for a market maker to fulfill it.
	StatusPending TransactionStatus = "PENDING"

	// StatusCompleted means a fulfillment event has been processed.
	StatusCompleted TransactionStatus = "COMPLETED"
)

// TransactionStage is the derived client-facing lifecycle stage.
type TransactionStage string

const (
	StagePending   TransactionStage = "pending"
	StageFulfilled TransactionStage = "fulfilled"
	StageVerified  TransactionStage = "verified"
	StageCompleted TransactionStage = "completed"
)

// Transaction is the sole persisted entity of the relay: one record per
// payment intent, keyed by the sender-chosen request ID.
type Transaction struct {
	RequestID         string            `json:"requestId"`
	SenderWallet      string            `json:"senderWallet"`
	ReceiverAccount   string            `json:"receiverAccount"`
	ReceiverName      string            `json:"receiverName"`
	ReceiverPhone     string            `json:"receiverPhone"`
	AmountNGN         int64             `json:"amountNgn"`
	Status            TransactionStatus `json:"status"`
	MarketMakerWallet string            `json:"marketMakerWallet,omitempty"`
	NINVerified       bool              `json:"ninVerified"`
	ReceiptConfirmed  bool              `json:"receiptConfirmed"`
	USSDCode          string            `json:"ussdCode,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`

	// Stage is derived, never persisted. It is populated on the way out
	// of the store and is the authoritative client-facing lifecycle view.
	Stage TransactionStage `json:"stage"`
}

// DeriveStage computes the client-facing stage from the persisted fields.
//
// The persisted status only distinguishes PENDING from COMPLETED; the
// intermediate stages are inferred from the fulfillment and verification
// markers. Receipt confirmation is the terminal stage.
func (t *Transaction) DeriveStage() TransactionStage {
	switch {
	case t.ReceiptConfirmed:
		return StageCompleted
	case t.NINVerified:
		return StageVerified
	case t.Status == StatusCompleted || t.MarketMakerWallet != "":
		return StageFulfilled
	default:
		return StagePending
	}
}
