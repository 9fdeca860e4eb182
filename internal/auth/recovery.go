// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/samber/oops"
)

// RecoveryCodeDigits is the length of a recovery code.
const RecoveryCodeDigits = 6

// recoveryCodeSpace is 10^RecoveryCodeDigits.
var recoveryCodeSpace = big.NewInt(1_000_000)

// CodeGenerator produces recovery codes.
type CodeGenerator func() (string, error)

// GenerateRecoveryCode returns a uniformly random, zero-padded 6-digit code.
func GenerateRecoveryCode() (string, error) {
	n, err := rand.Int(rand.Reader, recoveryCodeSpace)
	if err != nil {
		return "", oops.Code("RECOVERY_CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", RecoveryCodeDigits, n.Int64()), nil
}

// IsWellFormedRecoveryCode returns true if code is exactly six ASCII digits.
func IsWellFormedRecoveryCode(code string) bool {
	if len(code) != RecoveryCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// HashRecoveryCode computes the SHA256 hash stored in place of the code.
func HashRecoveryCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}
