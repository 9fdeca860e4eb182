// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package notify implements auth.Notifier.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/stream"
)

// DefaultStream is consumed by the mail worker.
const DefaultStream = "authcore:notifications"

// Message kinds written to the stream.
const (
	KindRecoveryCode  = "recovery_code"
	KindSecretChanged = "secret_changed"
)

// Error codes.
const (
	CodeDispatchFailed = "NOTIFY_DISPATCH_FAILED"
	CodeNotConfigured  = "NOTIFY_NOT_CONFIGURED"
)

var (
	_ auth.Notifier = (*LogNotifier)(nil)
	_ auth.Notifier = (*StreamNotifier)(nil)
	_ auth.Notifier = Unconfigured{}
)

// Unconfigured refuses every notification. It stands in when no delivery
// channel is configured.
type Unconfigured struct{}

// SendRecoveryCode always fails.
func (Unconfigured) SendRecoveryCode(context.Context, string, string, string, time.Time) error {
	return oops.Code(CodeNotConfigured).
		With("kind", KindRecoveryCode).
		Errorf("no notifier configured")
}

// SendSecretChangedNotice always fails.
func (Unconfigured) SendSecretChangedNotice(context.Context, string, string) error {
	return oops.Code(CodeNotConfigured).
		With("kind", KindSecretChanged).
		Errorf("no notifier configured")
}

// LogNotifier writes notifications to a logger. Development only: the
// recovery code appears in the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendRecoveryCode logs the code.
func (n *LogNotifier) SendRecoveryCode(ctx context.Context, identifier, displayName, code string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "recovery code issued",
		"kind", KindRecoveryCode,
		"identifier", identifier,
		"display_name", displayName,
		"code", code,
		"expires_at", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

// SendSecretChangedNotice logs the notice.
func (n *LogNotifier) SendSecretChangedNotice(ctx context.Context, identifier, displayName string) error {
	n.logger.InfoContext(ctx, "secret changed notice",
		"kind", KindSecretChanged,
		"identifier", identifier,
		"display_name", displayName)
	return nil
}

// StreamNotifier queues notifications on a Redis stream. A message counts
// as sent once Redis accepts it.
type StreamNotifier struct {
	producer *stream.Producer
}

// NewStreamNotifier creates a StreamNotifier.
func NewStreamNotifier(producer *stream.Producer) *StreamNotifier {
	return &StreamNotifier{producer: producer}
}

// SendRecoveryCode queues a recovery code message.
func (n *StreamNotifier) SendRecoveryCode(ctx context.Context, identifier, displayName, code string, expiresAt time.Time) error {
	return n.publish(ctx, KindRecoveryCode, map[string]any{
		"kind":         KindRecoveryCode,
		"identifier":   identifier,
		"display_name": displayName,
		"code":         code,
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
	})
}

// SendSecretChangedNotice queues a secret-changed message.
func (n *StreamNotifier) SendSecretChangedNotice(ctx context.Context, identifier, displayName string) error {
	return n.publish(ctx, KindSecretChanged, map[string]any{
		"kind":         KindSecretChanged,
		"identifier":   identifier,
		"display_name": displayName,
	})
}

func (n *StreamNotifier) publish(ctx context.Context, kind string, values map[string]any) error {
	if _, err := n.producer.Publish(ctx, values); err != nil {
		return oops.Code(CodeDispatchFailed).
			With("kind", kind).
			With("stream", n.producer.Stream()).
			Wrap(err)
	}
	return nil
}
