// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/clinicore/authcore/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("AUTH_INVALID_TOKEN").Errorf("token rejected")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("account_id", "123").Errorf("lookup failed")
	errutil.AssertErrorContext(t, err, "account_id", "123")
}

func TestAssertNoErrorContext(t *testing.T) {
	err := oops.With("identifier", "user@x.com").Errorf("login failed")
	errutil.AssertNoErrorContext(t, err, "secret")
}
