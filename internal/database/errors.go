// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"errors"
	"strings"
)

// Sentinel errors surfaced by the ledger. Callers match with errors.Is.
var (
	// ErrNotFound indicates the referenced transaction does not exist.
	ErrNotFound = errors.New("transaction not found")

	// ErrDuplicate indicates a create collided with an existing request ID.
	ErrDuplicate = errors.New("transaction already exists")
)

// isDuplicateKeyError detects DuckDB primary key violations. The driver
// does not expose a typed constraint error, so this matches the engine's
// constraint error text.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "primary key or unique constraint")
}
