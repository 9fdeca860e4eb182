// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T (%v)", err, err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err carries key with value in its oops context.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T (%v)", err, err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertNoErrorContext asserts that err does not carry key. Used to check
// that secrets stay out of error context.
func AssertNoErrorContext(t *testing.T, err error, key string) {
	t.Helper()
	if oopsErr, ok := oops.AsOops(err); ok {
		assert.NotContains(t, oopsErr.Context(), key)
	}
}
