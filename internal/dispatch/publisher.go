// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/payflux/payflux/internal/models"
	"github.com/payflux/payflux/internal/notify"
)

// Publisher queues notifications onto the dispatch pub/sub. It satisfies
// the event processor's Notifier interface.
//
// Publishing blocks until the delivery router is running: the gochannel
// pub/sub is not persistent, so a message published before the consumer
// subscribes would be dropped silently. After startup the gate is a
// closed channel and costs nothing.
type Publisher struct {
	pubsub  message.Publisher
	running chan struct{}
}

// NotifyPending queues the pending-payment SMS for a new transaction.
func (p *Publisher) NotifyPending(ctx context.Context, tx *models.Transaction) error {
	return p.publish(ctx, "pending", tx.RequestID, notify.PendingPaymentMessage(tx))
}

// NotifyFulfilled queues the fulfillment SMS.
func (p *Publisher) NotifyFulfilled(ctx context.Context, tx *models.Transaction) error {
	return p.publish(ctx, "fulfilled", tx.RequestID, notify.FulfilledPaymentMessage(tx))
}

func (p *Publisher) publish(ctx context.Context, kind, requestID string, m *notify.Message) error {
	payload, err := json.Marshal(Envelope{
		Kind:      kind,
		RequestID: requestID,
		To:        m.To,
		Body:      m.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	select {
	case <-p.running:
	case <-ctx.Done():
		return fmt.Errorf("queue %s notification for %s: %w", kind, requestID, ctx.Err())
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pubsub.Publish(TopicSMS, msg); err != nil {
		return fmt.Errorf("queue %s notification for %s: %w", kind, requestID, err)
	}
	return nil
}
