// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"fmt"

	"github.com/payflux/payflux/internal/models"
)

// shortWallet abbreviates a wallet address to its first 8 characters for
// SMS bodies. Shorter inputs are returned unchanged.
func shortWallet(wallet string) string {
	if len(wallet) <= 8 {
		return wallet
	}
	return wallet[:8]
}

// PendingPaymentMessage is the SMS sent to the recipient when a payment
// is created on-chain.
func PendingPaymentMessage(tx *models.Transaction) *Message {
	return &Message{
		To:   tx.ReceiverPhone,
		Body: fmt.Sprintf("You have a pending payment of NGN %d from %s...", tx.AmountNGN, shortWallet(tx.SenderWallet)),
	}
}

// FulfilledPaymentMessage is the SMS sent to the recipient when a market
// maker fulfills the payment.
func FulfilledPaymentMessage(tx *models.Transaction) *Message {
	return &Message{
		To:   tx.ReceiverPhone,
		Body: fmt.Sprintf("Your payment of NGN %d has been fulfilled! Market Maker: %s...", tx.AmountNGN, shortWallet(tx.MarketMakerWallet)),
	}
}

// ResendMessage rebuilds the notification for a stored transaction, used
// by the operator resend endpoint. Unlike the event-driven messages it
// carries no wallet detail; only the current status is known to matter.
func ResendMessage(tx *models.Transaction) *Message {
	body := fmt.Sprintf("You have a pending payment of NGN %d", tx.AmountNGN)
	if tx.Status == models.StatusCompleted {
		body = fmt.Sprintf("Your payment of NGN %d has been fulfilled!", tx.AmountNGN)
	}
	return &Message{To: tx.ReceiverPhone, Body: body}
}
