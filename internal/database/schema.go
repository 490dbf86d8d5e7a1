// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
)

// schemaStatements are executed in order on startup. Statements must be
// idempotent; there is no separate migration ledger for a single table.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		request_id          VARCHAR PRIMARY KEY,
		sender_wallet       VARCHAR NOT NULL,
		receiver_account    VARCHAR NOT NULL,
		receiver_name       VARCHAR NOT NULL,
		receiver_phone      VARCHAR NOT NULL,
		amount_ngn          BIGINT NOT NULL,
		status              VARCHAR NOT NULL DEFAULT 'PENDING',
		market_maker_wallet VARCHAR NOT NULL DEFAULT '',
		nin_verified        BOOLEAN NOT NULL DEFAULT false,
		receipt_confirmed   BOOLEAN NOT NULL DEFAULT false,
		ussd_code           VARCHAR NOT NULL DEFAULT '',
		created_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at)`,
}

// initSchema creates the ledger schema if it does not exist.
func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
