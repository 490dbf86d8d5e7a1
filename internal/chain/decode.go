// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chain

import (
	"fmt"

	"github.com/payflux/payflux/internal/models"
)

// ResolveInstruction returns the instruction name for a matched webhook
// element. The explicit instruction field wins; otherwise the 8-byte
// discriminator prefix of the raw data is consulted.
func ResolveInstruction(mt *models.MatchedTransaction) string {
	if mt.Instruction != "" {
		return mt.Instruction
	}
	return InstructionForData(mt.Data)
}

// DecodeCreated extracts a PaymentCreatedEvent from a matched element.
func DecodeCreated(mt *models.MatchedTransaction) (*models.PaymentCreatedEvent, error) {
	if mt.RecipientDetails == nil {
		return nil, fmt.Errorf("create_payment %s: missing recipient details", mt.Signature)
	}
	return &models.PaymentCreatedEvent{
		RequestID:        mt.RequestID,
		Sender:           mt.Sender,
		Amount:           mt.Amount,
		RecipientDetails: *mt.RecipientDetails,
	}, nil
}

// DecodeFulfilled extracts a PaymentFulfilledEvent from a matched element.
func DecodeFulfilled(mt *models.MatchedTransaction) (*models.PaymentFulfilledEvent, error) {
	return &models.PaymentFulfilledEvent{
		RequestID:   mt.RequestID,
		MarketMaker: mt.MarketMaker,
		Amount:      mt.Amount,
	}, nil
}
