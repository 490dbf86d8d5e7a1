// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity verifies recipient identity numbers before payout.
package identity

import (
	"context"
	"fmt"
)

// NINLength is the fixed length of a Nigerian National Identification
// Number.
const NINLength = 11

// Verifier checks a recipient's NIN against an identity provider.
type Verifier interface {
	// VerifyNIN reports whether the NIN is valid for payout. A false
	// result is a verification failure; an error means the check could
	// not be performed.
	VerifyNIN(ctx context.Context, nin string) (bool, error)
}

// StubVerifier accepts any well-formed NIN. It stands in until an
// external identity provider is integrated; the format check is the only
// validation performed.
type StubVerifier struct{}

// NewStubVerifier creates the stand-in verifier.
func NewStubVerifier() *StubVerifier {
	return &StubVerifier{}
}

// VerifyNIN implements Verifier.
func (v *StubVerifier) VerifyNIN(_ context.Context, nin string) (bool, error) {
	if len(nin) != NINLength {
		return false, fmt.Errorf("nin must be exactly %d characters", NINLength)
	}
	return true, nil
}
