// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package audit implements auth.AuditSink.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/stream"
)

// DefaultStream is the Redis stream receiving audit events.
const DefaultStream = "authcore:audit"

var (
	_ auth.AuditSink = (*LogSink)(nil)
	_ auth.AuditSink = (*StreamSink)(nil)
	_ auth.AuditSink = Multi(nil)
)

// LogSink writes audit events to a logger at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Record logs the event.
func (s *LogSink) Record(ctx context.Context, event auth.AuditEvent) error {
	attrs := []any{
		"event_id", event.ID.String(),
		"event", string(event.Type),
		"outcome", event.Outcome,
		"occurred_at", event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.AccountID != nil {
		attrs = append(attrs, "account_id", event.AccountID.String())
	}
	if event.Identifier != "" {
		attrs = append(attrs, "identifier", event.Identifier)
	}
	if len(event.Detail) > 0 {
		attrs = append(attrs, "detail", event.Detail)
	}
	s.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}

// StreamSink appends audit events to a Redis stream.
type StreamSink struct {
	producer *stream.Producer
}

// NewStreamSink creates a StreamSink.
func NewStreamSink(producer *stream.Producer) *StreamSink {
	return &StreamSink{producer: producer}
}

// Record publishes the event.
func (s *StreamSink) Record(ctx context.Context, event auth.AuditEvent) error {
	values, err := streamValues(event)
	if err != nil {
		return err
	}
	if _, err := s.producer.Publish(ctx, values); err != nil {
		return oops.Code("AUDIT_PUBLISH_FAILED").
			With("event", string(event.Type)).
			Wrap(err)
	}
	return nil
}

func streamValues(event auth.AuditEvent) (map[string]any, error) {
	values := map[string]any{
		"id":          event.ID.String(),
		"type":        string(event.Type),
		"outcome":     event.Outcome,
		"identifier":  event.Identifier,
		"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.AccountID != nil {
		values["account_id"] = event.AccountID.String()
	}
	if len(event.Detail) > 0 {
		detail, err := json.Marshal(event.Detail)
		if err != nil {
			return nil, oops.Code("AUDIT_ENCODE_FAILED").With("event", string(event.Type)).Wrap(err)
		}
		values["detail"] = string(detail)
	}
	return values, nil
}

// Multi records each event in every sink. Every sink is attempted and the
// failures are joined.
type Multi []auth.AuditSink

// Record fans the event out.
func (m Multi) Record(ctx context.Context, event auth.AuditEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
