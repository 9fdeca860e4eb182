// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/internal/auth"
)

func TestGenerateRecoveryCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		code, err := auth.GenerateRecoveryCode()
		require.NoError(t, err)
		assert.Len(t, code, auth.RecoveryCodeDigits)
		assert.True(t, auth.IsWellFormedRecoveryCode(code), "code %q", code)
		seen[code] = struct{}{}
	}
	// 200 draws from a million values almost never repeat more than a few times.
	assert.Greater(t, len(seen), 190)
}

func TestIsWellFormedRecoveryCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"000000", true},
		{"482913", true},
		{"48291", false},
		{"4829130", false},
		{"48a913", false},
		{" 48291", false},
		{"", false},
		{"٤٨٢٩١٣", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, auth.IsWellFormedRecoveryCode(tt.code), "code %q", tt.code)
	}
}

func TestHashRecoveryCode(t *testing.T) {
	hash := auth.HashRecoveryCode("482913")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, auth.HashRecoveryCode("482913"))
	assert.NotEqual(t, hash, auth.HashRecoveryCode("482914"))
}
