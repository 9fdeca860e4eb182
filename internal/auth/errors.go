// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by stores when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by stores when a uniqueness constraint is violated.
var ErrConflict = errors.New("conflict")

// Error codes returned by the services.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDisabled    = "AUTH_ACCOUNT_DISABLED"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeInvalidRequest     = "AUTH_INVALID_REQUEST"
	CodeNotificationFailed = "AUTH_NOTIFICATION_FAILED"
	CodeUnavailable        = "AUTH_UNAVAILABLE"
	CodeConflict           = "AUTH_CONFLICT"
)

// User-facing messages. Login and reset-request outcomes are collapsed so
// callers cannot learn whether an identifier exists.
const (
	MessageLoginFailed      = "Invalid credentials."
	MessageResetRequested   = "If the account exists, a recovery code has been sent."
	MessageInvalidCode      = "Invalid or expired recovery code."
	MessageTryAgain         = "Service temporarily unavailable. Try again later."
	MessageRequestRejected  = "The request could not be processed."
	MessageNotificationFail = "The recovery message could not be sent. Try again later."
)

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// IsCode reports whether err is an oops error carrying code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// IsSecurityOutcome reports whether err is a deliberate authentication
// decision rather than an infrastructure failure.
func IsSecurityOutcome(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case CodeInvalidCredentials, CodeAccountDisabled, CodeAccountLocked,
		CodeInvalidToken, CodeTokenExpired, CodeUnauthorized:
		return true
	default:
		return false
	}
}

// PublicMessage maps a service error onto the message shown to end users.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return MessageTryAgain
	}

	switch oopsErr.Code() {
	case CodeInvalidCredentials, CodeAccountDisabled, CodeAccountLocked, CodeUnauthorized:
		return MessageLoginFailed
	case CodeInvalidToken, CodeTokenExpired:
		return MessageInvalidCode
	case CodeInvalidRequest, CodeConflict:
		return MessageRequestRejected
	case CodeNotificationFailed:
		return MessageNotificationFail
	default:
		return MessageTryAgain
	}
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid identifier or secret")
}

func errInvalidToken(reason string) error {
	return oops.Code(CodeInvalidToken).With("reason", reason).Errorf("invalid token")
}

// unavailable wraps a collaborator failure. Stores must return uncoded errors
// so that the code seen by callers is CodeUnavailable.
func unavailable(operation string, err error) error {
	return oops.Code(CodeUnavailable).
		With("operation", operation).
		Wrap(err)
}

// opaque reports a collaborator failure under code. The collaborator's own
// oops code, if any, is kept only as context so it cannot shadow code.
func opaque(code, operation string, err error) error {
	return oops.Code(code).
		With("operation", operation).
		With("cause", err.Error()).
		Errorf("%s failed", operation)
}
