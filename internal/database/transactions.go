// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/payflux/payflux/internal/models"
)

// transactionColumns is the SELECT column list matching scanTransaction.
const transactionColumns = `request_id, sender_wallet, receiver_account, receiver_name,
	receiver_phone, amount_ngn, status, market_maker_wallet, nin_verified,
	receipt_confirmed, ussd_code, created_at`

// CreateTransaction inserts a new transaction with status PENDING.
// The request ID is the primary key; a collision surfaces ErrDuplicate.
func (db *DB) CreateTransaction(ctx context.Context, tx *models.Transaction) (_ *models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("create_transaction", start, err) }()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.Status = models.StatusPending

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO transactions (
			request_id, sender_wallet, receiver_account, receiver_name,
			receiver_phone, amount_ngn, status, market_maker_wallet,
			nin_verified, receipt_confirmed, ussd_code, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, '', false, false, '', ?)`,
		tx.RequestID, tx.SenderWallet, tx.ReceiverAccount, tx.ReceiverName,
		tx.ReceiverPhone, tx.AmountNGN, string(tx.Status), tx.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("request %s: %w", tx.RequestID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	tx.Stage = tx.DeriveStage()
	return tx, nil
}

// GetTransaction returns the transaction with the given request ID, or
// ErrNotFound.
func (db *DB) GetTransaction(ctx context.Context, requestID string) (_ *models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("get_transaction", start, err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE request_id = ?`, requestID)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns all transactions ordered by creation time,
// newest first. The result set is unbounded by design: the operator UI
// shows the full ledger.
func (db *DB) ListTransactions(ctx context.Context) (_ []models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("list_transactions", start, err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC, request_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// MarkFulfilled transitions the transaction to COMPLETED and records the
// market maker wallet, returning the updated record in the same call so
// callers never need a second lookup. Replay-safe: re-applying the same
// fulfillment leaves the row unchanged.
func (db *DB) MarkFulfilled(ctx context.Context, requestID, marketMakerWallet string) (_ *models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("mark_fulfilled", start, err) }()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, market_maker_wallet = ?
		WHERE request_id = ?`,
		string(models.StatusCompleted), marketMakerWallet, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	return db.GetTransaction(ctx, requestID)
}

// SetNINVerified marks the transaction's recipient identity as verified.
func (db *DB) SetNINVerified(ctx context.Context, requestID string) (_ *models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("set_nin_verified", start, err) }()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE transactions SET nin_verified = true WHERE request_id = ?`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	return db.GetTransaction(ctx, requestID)
}

// ConfirmReceipt records the off-chain transfer confirmation code and
// marks the receipt confirmed. The code is stored verbatim.
func (db *DB) ConfirmReceipt(ctx context.Context, requestID, ussdCode string) (_ *models.Transaction, err error) {
	start := time.Now()
	defer func() { observeQuery("confirm_receipt", start, err) }()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE transactions
		SET receipt_confirmed = true, ussd_code = ?
		WHERE request_id = ?`,
		ussdCode, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	return db.GetTransaction(ctx, requestID)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTransaction.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction scans one ledger row and derives the client-facing stage.
func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var status string
	if err := row.Scan(
		&tx.RequestID, &tx.SenderWallet, &tx.ReceiverAccount, &tx.ReceiverName,
		&tx.ReceiverPhone, &tx.AmountNGN, &status, &tx.MarketMakerWallet,
		&tx.NINVerified, &tx.ReceiptConfirmed, &tx.USSDCode, &tx.CreatedAt,
	); err != nil {
		return nil, err
	}
	tx.Status = models.TransactionStatus(status)
	tx.Stage = tx.DeriveStage()
	return &tx, nil
}
