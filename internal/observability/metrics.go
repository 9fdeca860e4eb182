// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeLocked      = "locked"
	OutcomeDisabled    = "disabled"
	OutcomeUnknown     = "unknown_identifier"
	OutcomeError       = "error"
	OutcomeNotifyError = "notification_failed"
)

// Metrics contains the Prometheus metrics for authentication operations.
// All record methods are safe to call on a nil *Metrics.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	Lockouts         prometheus.Counter
	TokenRefreshes   *prometheus.CounterVec
	RecoveryRequests *prometheus.CounterVec
	SecretChanges    *prometheus.CounterVec
}

// NewMetrics creates and registers authcore metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_login_attempts_total",
				Help: "Total number of credential checks by outcome",
			},
			[]string{"outcome"},
		),
		Lockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authcore_lockouts_total",
				Help: "Total number of accounts locked after repeated failures",
			},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_token_refresh_total",
				Help: "Total number of refresh token exchanges by outcome",
			},
			[]string{"outcome"},
		),
		RecoveryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_recovery_requests_total",
				Help: "Total number of recovery code requests by outcome",
			},
			[]string{"outcome"},
		),
		SecretChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_secret_changes_total",
				Help: "Total number of secret changes by method and outcome",
			},
			[]string{"method", "outcome"},
		),
	}

	reg.MustRegister(m.LoginAttempts)
	reg.MustRegister(m.Lockouts)
	reg.MustRegister(m.TokenRefreshes)
	reg.MustRegister(m.RecoveryRequests)
	reg.MustRegister(m.SecretChanges)

	return m
}

// RecordLogin increments the login attempt counter.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// RecordLockout increments the lockout counter.
func (m *Metrics) RecordLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

// RecordRefresh increments the refresh counter.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordRecoveryRequest increments the recovery request counter.
func (m *Metrics) RecordRecoveryRequest(outcome string) {
	if m == nil {
		return
	}
	m.RecoveryRequests.WithLabelValues(outcome).Inc()
}

// RecordSecretChange increments the secret change counter.
// method is "reset" or "change".
func (m *Metrics) RecordSecretChange(method, outcome string) {
	if m == nil {
		return
	}
	m.SecretChanges.WithLabelValues(method, outcome).Inc()
}
