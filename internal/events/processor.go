// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events normalizes on-chain escrow program events into ledger
// writes and recipient notifications. It is the single write path of the
// relay: both the webhook ingress and the WebSocket listener feed their
// decoded events through the Processor, which makes double delivery and
// replays safe to apply.
package events

import (
	"context"
	"errors"

	"github.com/payflux/payflux/internal/chain"
	"github.com/payflux/payflux/internal/database"
	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
	"github.com/payflux/payflux/internal/models"
	"github.com/payflux/payflux/internal/validation"
)

// Store is the ledger surface the processor writes to.
type Store interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetTransaction(ctx context.Context, requestID string) (*models.Transaction, error)
	MarkFulfilled(ctx context.Context, requestID, marketMakerWallet string) (*models.Transaction, error)
}

// Notifier queues recipient notifications for asynchronous delivery.
// Queueing failures are logged but never fail event processing; the
// ledger write is the source of truth.
type Notifier interface {
	NotifyPending(ctx context.Context, tx *models.Transaction) error
	NotifyFulfilled(ctx context.Context, tx *models.Transaction) error
}

// Processor applies escrow program events to the transaction ledger.
type Processor struct {
	store    Store
	notifier Notifier
}

// NewProcessor creates an event processor.
func NewProcessor(store Store, notifier Notifier) *Processor {
	return &Processor{store: store, notifier: notifier}
}

// HandlePaymentCreated records a new payment request and queues the
// pending-payment SMS.
//
// Replays are tolerated: if the request ID already exists the stored
// record is returned unchanged and no second notification is queued.
func (p *Processor) HandlePaymentCreated(ctx context.Context, ev *models.PaymentCreatedEvent) (*models.Transaction, error) {
	if verr := validation.ValidateStruct(ev); verr != nil {
		return nil, verr
	}

	tx := &models.Transaction{
		RequestID:       ev.RequestID,
		SenderWallet:    ev.Sender,
		ReceiverAccount: ev.RecipientDetails.AccountNumber,
		ReceiverName:    ev.RecipientDetails.AccountName,
		ReceiverPhone:   ev.RecipientDetails.PhoneNumber,
		AmountNGN:       ev.Amount,
	}

	created, err := p.store.CreateTransaction(ctx, tx)
	if errors.Is(err, database.ErrDuplicate) {
		logging.Debug().Str("request_id", ev.RequestID).Msg("Replayed payment_created event, keeping stored record")
		return p.store.GetTransaction(ctx, ev.RequestID)
	}
	if err != nil {
		return nil, &ProcessingError{Op: "payment_created", RequestID: ev.RequestID, Err: err}
	}

	if err := p.notifier.NotifyPending(ctx, created); err != nil {
		logging.Warn().Err(err).Str("request_id", created.RequestID).Msg("Failed to queue pending-payment notification")
	}

	logging.Info().
		Str("request_id", created.RequestID).
		Int64("amount_ngn", created.AmountNGN).
		Msg("Payment request created")
	return created, nil
}

// HandlePaymentFulfilled marks a pending payment as fulfilled and queues
// the fulfillment SMS. Fulfillment of an unknown request is a processing
// failure and never creates a record.
func (p *Processor) HandlePaymentFulfilled(ctx context.Context, ev *models.PaymentFulfilledEvent) (*models.Transaction, error) {
	if verr := validation.ValidateStruct(ev); verr != nil {
		return nil, verr
	}

	updated, err := p.store.MarkFulfilled(ctx, ev.RequestID, ev.MarketMaker)
	if err != nil {
		return nil, &ProcessingError{Op: "payment_fulfilled", RequestID: ev.RequestID, Err: err}
	}

	if err := p.notifier.NotifyFulfilled(ctx, updated); err != nil {
		logging.Warn().Err(err).Str("request_id", updated.RequestID).Msg("Failed to queue fulfillment notification")
	}

	logging.Info().
		Str("request_id", updated.RequestID).
		Str("market_maker", updated.MarketMakerWallet).
		Msg("Payment fulfilled")
	return updated, nil
}

// ProcessBatch applies a webhook batch element by element.
//
// The batch is not atomic: a failing element does not roll back earlier
// elements, and processing continues past it. The returned results carry
// one entry per element in input order; failed reports whether any
// element failed.
func (p *Processor) ProcessBatch(ctx context.Context, req *models.WebhookRequest) (results []models.WebhookElementResult, failed bool) {
	results = make([]models.WebhookElementResult, 0, len(req.MatchedTransactions))

	for i := range req.MatchedTransactions {
		mt := &req.MatchedTransactions[i]
		result := p.processElement(ctx, mt)
		if result.Status == elementFailed {
			failed = true
		}
		metrics.WebhookElementsTotal.WithLabelValues(result.Instruction, result.Status).Inc()
		results = append(results, result)
	}
	return results, failed
}

// Element result statuses.
const (
	elementProcessed = "processed"
	elementSkipped   = "skipped"
	elementFailed    = "failed"
)

func (p *Processor) processElement(ctx context.Context, mt *models.MatchedTransaction) models.WebhookElementResult {
	result := models.WebhookElementResult{Signature: mt.Signature}

	instruction := chain.ResolveInstruction(mt)
	result.Instruction = instruction

	switch instruction {
	case chain.InstructionCreatePayment:
		ev, err := chain.DecodeCreated(mt)
		if err == nil {
			_, err = p.HandlePaymentCreated(ctx, ev)
		}
		if err != nil {
			result.Status = elementFailed
			result.Error = err.Error()
			logging.Error().Err(err).Str("signature", mt.Signature).Msg("Webhook element failed")
			return result
		}
		result.Status = elementProcessed

	case chain.InstructionFulfillPayment:
		ev, err := chain.DecodeFulfilled(mt)
		if err == nil {
			_, err = p.HandlePaymentFulfilled(ctx, ev)
		}
		if err != nil {
			result.Status = elementFailed
			result.Error = err.Error()
			logging.Error().Err(err).Str("signature", mt.Signature).Msg("Webhook element failed")
			return result
		}
		result.Status = elementProcessed

	default:
		// Transactions against other instructions are not relay business.
		result.Instruction = "unknown"
		result.Status = elementSkipped
		logging.Debug().Str("signature", mt.Signature).Msg("Skipping webhook element with unknown instruction")
	}
	return result
}
