// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chain holds the relay's knowledge of the on-chain escrow
// program interface: instruction discriminators, decoding of matched
// webhook elements into typed events, and the optional WebSocket event
// listener. The program's execution logic lives on-chain and is not
// represented here.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Instruction names exposed by the escrow program.
const (
	InstructionCreatePayment  = "create_payment"
	InstructionFulfillPayment = "fulfill_payment"
)

// DiscriminatorLen is the length of an Anchor instruction discriminator.
const DiscriminatorLen = 8

// Sighash computes the 8-byte discriminator for an instruction: the first
// 8 bytes of SHA-256("namespace:name"). Program instructions use the
// "global" namespace.
func Sighash(namespace, name string) [DiscriminatorLen]byte {
	digest := sha256.Sum256([]byte(namespace + ":" + name))
	var out [DiscriminatorLen]byte
	copy(out[:], digest[:DiscriminatorLen])
	return out
}

// Known discriminators, computed once at startup.
var (
	createPaymentDiscriminator  = Sighash("global", InstructionCreatePayment)
	fulfillPaymentDiscriminator = Sighash("global", InstructionFulfillPayment)
)

// InstructionForData resolves an instruction name from raw hex-encoded
// instruction data by its discriminator prefix. Returns "" when the data
// is too short, malformed, or targets an unknown instruction.
func InstructionForData(hexData string) string {
	if len(hexData) < DiscriminatorLen*2 {
		return ""
	}
	prefix, err := hex.DecodeString(hexData[:DiscriminatorLen*2])
	if err != nil {
		return ""
	}

	var tag [DiscriminatorLen]byte
	copy(tag[:], prefix)
	switch tag {
	case createPaymentDiscriminator:
		return InstructionCreatePayment
	case fulfillPaymentDiscriminator:
		return InstructionFulfillPayment
	default:
		return ""
	}
}
