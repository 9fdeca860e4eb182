// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Notifier delivers outbound security messages to account holders.
type Notifier interface {
	// SendRecoveryCode delivers a recovery code.
	SendRecoveryCode(ctx context.Context, identifier, displayName, code string, expiresAt time.Time) error

	// SendSecretChangedNotice confirms that the account secret changed.
	SendSecretChangedNotice(ctx context.Context, identifier, displayName string) error
}

// AuditEventType names a security event.
type AuditEventType string

// Audit event types.
const (
	EventLoginSucceeded     AuditEventType = "login.succeeded"
	EventLoginFailed        AuditEventType = "login.failed"
	EventAccountLocked      AuditEventType = "account.locked"
	EventLogout             AuditEventType = "logout"
	EventTokenRefreshed     AuditEventType = "token.refreshed"
	EventResetRequested     AuditEventType = "recovery.requested"
	EventResetCompleted     AuditEventType = "recovery.completed"
	EventSecretChanged      AuditEventType = "secret.changed"
	EventAccountProvisioned AuditEventType = "account.provisioned"
	EventAccountDeactivated AuditEventType = "account.deactivated"
	EventAccountUnlocked    AuditEventType = "account.unlocked"
)

// AuditEvent is a security event handed to an AuditSink.
type AuditEvent struct {
	ID         ulid.ULID
	Type       AuditEventType
	AccountID  *ulid.ULID
	Identifier string
	Outcome    string
	Detail     map[string]string
	OccurredAt time.Time
}

// AuditSink accepts security events. Failures never abort the operation
// being audited.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// NopAuditSink discards all events.
type NopAuditSink struct{}

// Record discards the event.
func (NopAuditSink) Record(context.Context, AuditEvent) error { return nil }
