// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"

	"github.com/clinicore/authcore/internal/observability"
)

var tracer = otel.Tracer("github.com/clinicore/authcore/internal/auth")

// Option configures a service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger  *slog.Logger
	now     func() time.Time
	audit   AuditSink
	metrics *observability.Metrics
	codes   CodeGenerator
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger: slog.Default(),
		now:    time.Now,
		audit:  NopAuditSink{},
		codes:  GenerateRecoveryCode,
	}
}

func applyOptions(opts []Option) serviceOptions {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for lockout and expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAuditSink sets the sink receiving security events.
func WithAuditSink(sink AuditSink) Option {
	return func(o *serviceOptions) {
		if sink != nil {
			o.audit = sink
		}
	}
}

// WithMetrics sets the Prometheus metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithCodeGenerator replaces the recovery code generator.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(o *serviceOptions) {
		if gen != nil {
			o.codes = gen
		}
	}
}

// record hands event to the audit sink; failures are logged and swallowed.
func (o serviceOptions) record(ctx context.Context, event AuditEvent) {
	event.ID = ulid.Make()
	event.OccurredAt = o.now().UTC()
	if err := o.audit.Record(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "best-effort audit record failed",
			"operation", "audit_record",
			"event", string(event.Type),
			"error", err.Error())
	}
}

// bestEffort logs a failed side effect that must not fail the operation.
func (o serviceOptions) bestEffort(ctx context.Context, operation string, accountID ulid.ULID, err error) {
	o.logger.WarnContext(ctx, "best-effort operation failed",
		"operation", operation,
		"account_id", accountID.String(),
		"error", err.Error())
}
