// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// RecipientDetails is the fiat banking destination captured verbatim from
// the payment-created event.
type RecipientDetails struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
	AccountName   string `json:"accountName" validate:"required"`
	PhoneNumber   string `json:"phoneNumber" validate:"required"`
}

// PaymentCreatedEvent is emitted by the escrow program when a sender locks
// funds for a new payment request.
type PaymentCreatedEvent struct {
	RequestID        string           `json:"requestId" validate:"required"`
	Sender           string           `json:"sender" validate:"required"`
	Amount           int64            `json:"amount" validate:"gte=0"`
	RecipientDetails RecipientDetails `json:"recipientDetails" validate:"required"`
}

// PaymentFulfilledEvent is emitted when a market maker claims a pending
// payment request.
type PaymentFulfilledEvent struct {
	RequestID   string `json:"requestId" validate:"required"`
	MarketMaker string `json:"marketMaker" validate:"required"`
	Amount      int64  `json:"amount"`
}

// MatchedTransaction is one element of a webhook batch: an on-chain
// transaction matched against the escrow program by the stream provider.
//
// The instruction is identified either by name (Instruction) or by the
// 8-byte discriminator prefix of the raw instruction data (Data, hex).
// Event payload fields are carried inline alongside the chain metadata.
type MatchedTransaction struct {
	Signature   string   `json:"signature"`
	BlockTime   int64    `json:"blockTime"`
	Accounts    []string `json:"accounts,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	Data        string   `json:"data,omitempty"`

	// create_payment payload
	RequestID        string            `json:"requestId,omitempty"`
	Sender           string            `json:"sender,omitempty"`
	Amount           int64             `json:"amount,omitempty"`
	RecipientDetails *RecipientDetails `json:"recipientDetails,omitempty"`

	// fulfill_payment payload
	MarketMaker string `json:"marketMaker,omitempty"`
}

// WebhookRequest is the body of a stream-provider webhook delivery.
type WebhookRequest struct {
	MatchedTransactions []MatchedTransaction `json:"matchedTransactions"`
}

// WebhookElementResult reports the outcome of processing one batch element.
// The batch is not atomic: earlier elements' side effects persist even when
// a later element fails, and the result list makes that explicit.
type WebhookElementResult struct {
	Signature   string `json:"signature"`
	Instruction string `json:"instruction"`
	Status      string `json:"status"` // processed, skipped, or failed
	Error       string `json:"error,omitempty"`
}
