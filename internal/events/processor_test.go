// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/payflux/payflux/internal/database"
	"github.com/payflux/payflux/internal/models"
	"github.com/payflux/payflux/internal/validation"
)

// fakeStore is an in-memory Store with the same sentinel behavior as the
// DuckDB implementation.
type fakeStore struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{txs: make(map[string]*models.Transaction)}
}

func (s *fakeStore) CreateTransaction(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.RequestID]; ok {
		return nil, database.ErrDuplicate
	}
	cp := *tx
	cp.Status = models.StatusPending
	cp.Stage = cp.DeriveStage()
	s.txs[tx.RequestID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeStore) GetTransaction(_ context.Context, requestID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[requestID]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (s *fakeStore) MarkFulfilled(_ context.Context, requestID, marketMakerWallet string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[requestID]
	if !ok {
		return nil, database.ErrNotFound
	}
	tx.Status = models.StatusCompleted
	tx.MarketMakerWallet = marketMakerWallet
	tx.Stage = tx.DeriveStage()
	out := *tx
	return &out, nil
}

// fakeNotifier records queued notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	pending   []string
	fulfilled []string
}

func (n *fakeNotifier) NotifyPending(_ context.Context, tx *models.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, tx.RequestID)
	return nil
}

func (n *fakeNotifier) NotifyFulfilled(_ context.Context, tx *models.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fulfilled = append(n.fulfilled, tx.RequestID)
	return nil
}

func createdEvent(requestID string) *models.PaymentCreatedEvent {
	return &models.PaymentCreatedEvent{
		RequestID: requestID,
		Sender:    "8x7PmsUcvy2FkQzsA5WAzqCDSvFRgNQJcGeqELHzPa9Y",
		Amount:    50000,
		RecipientDetails: models.RecipientDetails{
			AccountNumber: "0123456789",
			AccountName:   "Ada Obi",
			PhoneNumber:   "+2348012345678",
		},
	}
}

func TestHandlePaymentCreated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	p := NewProcessor(store, notifier)

	tx, err := p.HandlePaymentCreated(context.Background(), createdEvent("req-1"))
	if err != nil {
		t.Fatalf("HandlePaymentCreated failed: %v", err)
	}
	if tx.Status != models.StatusPending || tx.Stage != models.StagePending {
		t.Errorf("new transaction status/stage = %s/%s", tx.Status, tx.Stage)
	}
	if tx.ReceiverPhone != "+2348012345678" {
		t.Errorf("recipient details not carried verbatim: %+v", tx)
	}
	if len(notifier.pending) != 1 || notifier.pending[0] != "req-1" {
		t.Errorf("pending notifications = %v, want [req-1]", notifier.pending)
	}
}

func TestHandlePaymentCreatedReplay(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	p := NewProcessor(store, notifier)
	ctx := context.Background()

	first, err := p.HandlePaymentCreated(ctx, createdEvent("req-r"))
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	replayed, err := p.HandlePaymentCreated(ctx, createdEvent("req-r"))
	if err != nil {
		t.Fatalf("replay must not fail: %v", err)
	}
	if replayed.RequestID != first.RequestID || replayed.Status != first.Status {
		t.Errorf("replay changed the record: %+v vs %+v", first, replayed)
	}
	if len(notifier.pending) != 1 {
		t.Errorf("replay must not queue a second notification, got %d", len(notifier.pending))
	}
}

func TestHandlePaymentCreatedValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p := NewProcessor(store, &fakeNotifier{})
	ctx := context.Background()

	bad := createdEvent("req-bad")
	bad.Amount = -1
	_, err := p.HandlePaymentCreated(ctx, bad)
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.GetTransaction(ctx, "req-bad"); !errors.Is(err, database.ErrNotFound) {
		t.Error("invalid event must not be persisted")
	}

	noPhone := createdEvent("req-bad2")
	noPhone.RecipientDetails.PhoneNumber = ""
	if _, err := p.HandlePaymentCreated(ctx, noPhone); err == nil {
		t.Error("expected validation error for missing phone")
	}
}

func TestHandlePaymentCreatedZeroAmount(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p := NewProcessor(store, &fakeNotifier{})

	// Amounts are non-negative; zero is a valid creation.
	ev := createdEvent("req-zero")
	ev.Amount = 0
	tx, err := p.HandlePaymentCreated(context.Background(), ev)
	if err != nil {
		t.Fatalf("zero-amount creation must succeed: %v", err)
	}
	if tx.AmountNGN != 0 || tx.Status != models.StatusPending {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestHandlePaymentFulfilled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	p := NewProcessor(store, notifier)
	ctx := context.Background()

	if _, err := p.HandlePaymentCreated(ctx, createdEvent("req-f")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tx, err := p.HandlePaymentFulfilled(ctx, &models.PaymentFulfilledEvent{
		RequestID:   "req-f",
		MarketMaker: "MMwallet11111111111111111111111111111111111",
		Amount:      50000,
	})
	if err != nil {
		t.Fatalf("HandlePaymentFulfilled failed: %v", err)
	}
	if tx.Status != models.StatusCompleted || tx.Stage != models.StageFulfilled {
		t.Errorf("status/stage = %s/%s", tx.Status, tx.Stage)
	}
	if len(notifier.fulfilled) != 1 {
		t.Errorf("fulfilled notifications = %v", notifier.fulfilled)
	}
}

func TestHandlePaymentFulfilledUnknownRequest(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p := NewProcessor(store, &fakeNotifier{})
	ctx := context.Background()

	_, err := p.HandlePaymentFulfilled(ctx, &models.PaymentFulfilledEvent{
		RequestID:   "ghost",
		MarketMaker: "mm",
	})
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("cause should be ErrNotFound, got %v", perr.Err)
	}
	if _, err := store.GetTransaction(ctx, "ghost"); !errors.Is(err, database.ErrNotFound) {
		t.Error("fulfillment must not auto-create a record")
	}
}

func TestProcessBatchPartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p := NewProcessor(store, &fakeNotifier{})
	ctx := context.Background()

	req := &models.WebhookRequest{MatchedTransactions: []models.MatchedTransaction{
		{
			Signature:   "sig-create",
			Instruction: "create_payment",
			RequestID:   "req-b1",
			Sender:      "senderWallet",
			Amount:      1000,
			RecipientDetails: &models.RecipientDetails{
				AccountNumber: "0123456789",
				AccountName:   "Ada Obi",
				PhoneNumber:   "+2348012345678",
			},
		},
		{Signature: "sig-other", Instruction: "close_account"},
		{Signature: "sig-fulfill", Instruction: "fulfill_payment", RequestID: "ghost", MarketMaker: "mm"},
	}}

	results, failed := p.ProcessBatch(ctx, req)
	if !failed {
		t.Error("batch with a failing element must report failure")
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Status != "processed" {
		t.Errorf("element 0 = %+v, want processed", results[0])
	}
	if results[1].Status != "skipped" {
		t.Errorf("element 1 = %+v, want skipped", results[1])
	}
	if results[2].Status != "failed" || results[2].Error == "" {
		t.Errorf("element 2 = %+v, want failed with error", results[2])
	}

	// Earlier elements' effects persist despite the later failure.
	if _, err := store.GetTransaction(ctx, "req-b1"); err != nil {
		t.Errorf("element 0 side effect lost: %v", err)
	}
}

func TestProcessBatchResolvesInstructionFromData(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p := NewProcessor(store, &fakeNotifier{})

	req := &models.WebhookRequest{MatchedTransactions: []models.MatchedTransaction{
		{
			Signature: "sig-hex",
			Data:      "1c5155fd07df9a2a",
			RequestID: "req-hex",
			Sender:    "senderWallet",
			Amount:    500,
			RecipientDetails: &models.RecipientDetails{
				AccountNumber: "0123456789",
				AccountName:   "Ada Obi",
				PhoneNumber:   "+2348012345678",
			},
		},
	}}

	results, failed := p.ProcessBatch(context.Background(), req)
	if failed {
		t.Fatalf("batch failed: %+v", results)
	}
	if results[0].Instruction != "create_payment" || results[0].Status != "processed" {
		t.Errorf("result = %+v", results[0])
	}
}
