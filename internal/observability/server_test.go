// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/clinicore/authcore/pkg/errutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, quietLogger())
	server.Metrics().RecordLogin(OutcomeSuccess)
	server.Metrics().RecordRefresh(OutcomeRejected)
	server.Metrics().RecordLockout()

	code, body := get(t, server.Handler(), PathMetrics)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `authcore_login_attempts_total{outcome="success"} 1`)
	assert.Contains(t, body, `authcore_token_refresh_total{outcome="rejected"} 1`)
	assert.Contains(t, body, "authcore_lockouts_total 1")
}

func TestServer_Liveness(t *testing.T) {
	server := NewServer("127.0.0.1:0", func(context.Context) error { return errors.New("db down") }, quietLogger())

	code, body := get(t, server.Handler(), PathLiveness)
	assert.Equal(t, http.StatusOK, code, "liveness ignores readiness")
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		checker  ReadinessChecker
		wantCode int
		wantBody string
	}{
		{name: "nil checker", checker: nil, wantCode: http.StatusOK, wantBody: "ok\n"},
		{name: "ready", checker: func(context.Context) error { return nil }, wantCode: http.StatusOK, wantBody: "ok\n"},
		{
			name:     "not ready",
			checker:  func(context.Context) error { return errors.New("database unreachable") },
			wantCode: http.StatusServiceUnavailable,
			wantBody: "not ready\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			server := NewServer("127.0.0.1:0", tt.checker, slog.New(slog.NewJSONHandler(&logs, nil)))

			code, body := get(t, server.Handler(), PathReadiness)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, logs.String(), "database unreachable")
				assert.NotContains(t, body, "database", "reasons stay out of the response")
			}
		})
	}
}

func TestServer_ReadinessCheckerHasDeadline(t *testing.T) {
	var hasDeadline bool
	server := NewServer("127.0.0.1:0", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}, quietLogger())

	get(t, server.Handler(), PathReadiness)
	assert.True(t, hasDeadline)
}

func TestServer_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := NewServer("127.0.0.1:0", nil, quietLogger())
	errCh, err := server.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + server.Addr() + PathLiveness)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	http.DefaultClient.CloseIdleConnections()

	_, err = server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_RUNNING")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx), "second stop is a no-op")

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "channel closes without error on shutdown: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel was not closed")
	}
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	first := NewServer("127.0.0.1:0", nil, quietLogger())
	_, err := first.Start()
	require.NoError(t, err)
	defer func() { _ = first.Stop(context.Background()) }()

	second := NewServer(first.Addr(), nil, quietLogger())
	_, err = second.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")
	assert.Empty(t, second.Addr())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLogin(OutcomeSuccess)
		m.RecordLockout()
		m.RecordRefresh(OutcomeSuccess)
		m.RecordRecoveryRequest(OutcomeSuccess)
		m.RecordSecretChange("reset", OutcomeSuccess)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordRecoveryRequest(OutcomeNotifyError)
	m.RecordSecretChange("change", OutcomeSuccess)
	m.RecordSecretChange("change", OutcomeSuccess)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryRequests.WithLabelValues(OutcomeNotifyError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SecretChanges.WithLabelValues("change", OutcomeSuccess)))
}
