// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import "fmt"

// ProcessingError marks a failure while applying an on-chain event to the
// ledger. The API maps it to PROCESSING_ERROR / 500; the webhook batch
// records it against the failing element.
type ProcessingError struct {
	Op        string // "payment_created" or "payment_fulfilled"
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s for request %s: %v", e.Op, e.RequestID, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}
