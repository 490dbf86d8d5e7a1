// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialChecker validates the single configured admin account.
// The password is bcrypt-hashed once at startup so login requests never
// touch the plaintext.
type CredentialChecker struct {
	username     string
	passwordHash []byte
}

// NewCredentialChecker hashes the configured admin password.
func NewCredentialChecker(username, password string) (*CredentialChecker, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("admin username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &CredentialChecker{username: username, passwordHash: hash}, nil
}

// Check reports whether the supplied credentials match the admin
// account. The username comparison is constant-time and the password is
// always checked against bcrypt, so valid and invalid usernames take
// comparable time.
func (c *CredentialChecker) Check(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(c.username), []byte(username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	return usernameMatch && passwordErr == nil
}
