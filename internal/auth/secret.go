// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// Secret policy constraints. The upper bound is bcrypt's input limit.
const (
	MinSecretLength = 8
	MaxSecretLength = 72
)

// secretSymbols is the accepted set of special characters.
const secretSymbols = "@$!%*?&"

// ValidateSecret checks a new secret against the account secret policy:
// length bounds plus at least one lower-case letter, upper-case letter,
// digit and symbol.
func ValidateSecret(secret string) error {
	if secret == "" {
		return oops.Code(CodeInvalidRequest).Errorf("secret cannot be empty")
	}
	if len(secret) < MinSecretLength {
		return oops.Code(CodeInvalidRequest).
			With("min", MinSecretLength).
			Errorf("secret must be at least %d characters", MinSecretLength)
	}
	if len(secret) > MaxSecretLength {
		return oops.Code(CodeInvalidRequest).
			With("max", MaxSecretLength).
			Errorf("secret must be at most %d bytes", MaxSecretLength)
	}

	var lower, upper, digit, symbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(secretSymbols, r):
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return oops.Code(CodeInvalidRequest).
			Errorf("secret must contain upper-case and lower-case letters, digits and one of %s", secretSymbols)
	}
	return nil
}
