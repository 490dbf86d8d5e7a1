// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// APIResponse is the envelope for every JSON response from the relay API.
//
// Status is "success" or "error". Data carries the payload on success and
// is null on errors; Error is set only on errors.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: malformed request input (400)
//   - NOT_FOUND: referenced transaction absent (404)
//   - PROCESSING_ERROR: store or notification failure during event handling (500)
//   - AUTHENTICATION_ERROR: missing or invalid credentials (401)
//   - INTERNAL_ERROR: anything uncaught (500)
//
// Internal detail is logged server-side, never exposed in Message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
