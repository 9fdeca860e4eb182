// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/auth/memstore"
	"github.com/clinicore/authcore/internal/observability"
)

const (
	testSecret     = "Correct1!"
	testIdentifier = "user@x.com"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockNotifier is a mock for auth.Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendRecoveryCode(ctx context.Context, identifier, displayName, code string, expiresAt time.Time) error {
	args := m.Called(ctx, identifier, displayName, code, expiresAt)
	return args.Error(0)
}

func (m *mockNotifier) SendSecretChangedNotice(ctx context.Context, identifier, displayName string) error {
	args := m.Called(ctx, identifier, displayName)
	return args.Error(0)
}

// recordingSink collects audit events and optionally fails.
type recordingSink struct {
	mu     sync.Mutex
	events []auth.AuditEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event auth.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) types() []auth.AuditEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.AuditEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// faultyStore wraps a memstore and injects failures per method.
type faultyStore struct {
	*memstore.Store
	findErr        error
	findByIDErr    error
	recordFailErr  error
	recordSuccErr  error
	touchErr       error
	setCodeErr     error
	clearCodeErr   error
	consumeErr     error
	updateErr      error
	setCodeCalls   int
	conflictsFirst int
}

func (s *faultyStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.Store.FindByIdentifier(ctx, identifier)
}

func (s *faultyStore) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	if s.findByIDErr != nil {
		return nil, s.findByIDErr
	}
	return s.Store.FindByID(ctx, id)
}

func (s *faultyStore) RecordFailure(ctx context.Context, id ulid.ULID, threshold int, lockUntil time.Time) (*auth.Account, error) {
	if s.recordFailErr != nil {
		return nil, s.recordFailErr
	}
	return s.Store.RecordFailure(ctx, id, threshold, lockUntil)
}

func (s *faultyStore) RecordSuccess(ctx context.Context, id ulid.ULID) error {
	if s.recordSuccErr != nil {
		return s.recordSuccErr
	}
	return s.Store.RecordSuccess(ctx, id)
}

func (s *faultyStore) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	if s.touchErr != nil {
		return s.touchErr
	}
	return s.Store.TouchLastLogin(ctx, id, at)
}

func (s *faultyStore) SetRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string, expiresAt time.Time) error {
	s.setCodeCalls++
	if s.setCodeCalls <= s.conflictsFirst {
		return auth.ErrConflict
	}
	if s.setCodeErr != nil {
		return s.setCodeErr
	}
	return s.Store.SetRecoveryCode(ctx, id, codeHash, expiresAt)
}

func (s *faultyStore) ClearRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string) error {
	if s.clearCodeErr != nil {
		return s.clearCodeErr
	}
	return s.Store.ClearRecoveryCode(ctx, id, codeHash)
}

func (s *faultyStore) ConsumeRecoveryCode(ctx context.Context, id ulid.ULID, codeHash, secretHash string) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	return s.Store.ConsumeRecoveryCode(ctx, id, codeHash, secretHash)
}

func (s *faultyStore) UpdateSecret(ctx context.Context, id ulid.ULID, secretHash string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Store.UpdateSecret(ctx, id, secretHash)
}

var errDatabaseDown = errors.New("database connection lost")

// fixture wires every service against one store, clock and set of fakes.
type fixture struct {
	backing  *memstore.Store
	store    *faultyStore
	clock    *fakeClock
	notifier *mockNotifier
	audit    *recordingSink
	hasher   auth.PasswordHasher
	codec    *auth.JWTCodec
	cfg      auth.Config
	metrics  *observability.Metrics
	logs     *bytes.Buffer

	codes []string

	authn     *auth.AuthenticationService
	sessions  *auth.SessionService
	recovery  *auth.RecoveryService
	provision *auth.ProvisioningService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		backing:  memstore.New(),
		clock:    newFakeClock(),
		notifier: new(mockNotifier),
		audit:    &recordingSink{},
		cfg:      auth.DefaultConfig(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		logs:     &bytes.Buffer{},
	}
	f.store = &faultyStore{Store: f.backing}

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	f.hasher = hasher
	f.cfg.HashCost = bcrypt.MinCost

	f.codec, err = auth.NewJWTCodec(testSigningKey, "authcore-test", auth.WithCodecClock(f.clock.Now))
	require.NoError(t, err)

	opts := []auth.Option{
		auth.WithClock(f.clock.Now),
		auth.WithAuditSink(f.audit),
		auth.WithMetrics(f.metrics),
		auth.WithLogger(slog.New(slog.NewJSONHandler(f.logs, nil))),
		auth.WithCodeGenerator(f.nextCode),
	}

	f.sessions, err = auth.NewSessionService(f.codec, f.store, f.cfg, opts...)
	require.NoError(t, err)
	f.authn, err = auth.NewAuthenticationService(f.store, f.hasher, f.sessions, f.cfg, opts...)
	require.NoError(t, err)
	f.recovery, err = auth.NewRecoveryService(f.store, f.hasher, f.notifier, f.cfg, opts...)
	require.NoError(t, err)
	f.provision, err = auth.NewProvisioningService(f.store, f.hasher, opts...)
	require.NoError(t, err)

	return f
}

// nextCode returns queued codes first, then random ones.
func (f *fixture) nextCode() (string, error) {
	if len(f.codes) > 0 {
		code := f.codes[0]
		f.codes = f.codes[1:]
		return code, nil
	}
	return auth.GenerateRecoveryCode()
}

func (f *fixture) createAccount(t *testing.T, identifier string) *auth.Account {
	t.Helper()
	account, err := f.provision.Provision(context.Background(), auth.ProvisionRequest{
		Identifier:  identifier,
		DisplayName: "Test User",
		Secret:      testSecret,
		Permissions: []string{"exams:read"},
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) reload(t *testing.T, id ulid.ULID) *auth.Account {
	t.Helper()
	account, err := f.backing.FindByID(context.Background(), id)
	require.NoError(t, err)
	return account
}

// logEntry represents a parsed JSON log entry.
type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Operation string `json:"operation"`
	Event     string `json:"event"`
	Error     string `json:"error"`
	AccountID string `json:"account_id"`
}

// entries parses every JSON line logged so far.
func (f *fixture) entries(t *testing.T) []logEntry {
	t.Helper()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var e logEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

// findEntry returns the first log entry with the given operation.
func (f *fixture) findEntry(t *testing.T, operation string) (logEntry, bool) {
	t.Helper()
	for _, e := range f.entries(t) {
		if e.Operation == operation {
			return e, true
		}
	}
	return logEntry{}, false
}
