// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clinicore/authcore/internal/observability"
)

// timingSecret is hashed once to give unknown identifiers a verification
// cost comparable to real accounts. It is not a credential.
//
//nolint:gosec // G101: fixed input for timing equalization, not a credential.
const timingSecret = "authcore-timing-equalization"

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Tokens  *TokenPair
	Account AccountSummary
}

// AccountSummary is the caller-facing view of an authenticated account.
type AccountSummary struct {
	ID               ulid.ULID
	Identifier       string
	DisplayName      string
	Permissions      []string
	MustChangeSecret bool
}

// AuthenticationService verifies credentials and enforces lockout.
type AuthenticationService struct {
	store    AccountStore
	hasher   PasswordHasher
	sessions *SessionService
	cfg      Config
	opts     serviceOptions

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticationService creates a new AuthenticationService.
func NewAuthenticationService(
	store AccountStore,
	hasher PasswordHasher,
	sessions *SessionService,
	cfg Config,
	opts ...Option,
) (*AuthenticationService, error) {
	if store == nil {
		return nil, oops.Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session service is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AuthenticationService{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
		cfg:      cfg,
		opts:     applyOptions(opts),
	}, nil
}

// ValidateCredentials checks identifier and secret and returns the account.
//
// Unknown identifiers and wrong secrets both fail with CodeInvalidCredentials.
// A wrong secret increments the failed-attempt counter; reaching the lockout
// threshold locks the account, and the attempt that triggers the lockout still
// reports CodeInvalidCredentials. Disabled and locked accounts fail with
// CodeAccountDisabled and CodeAccountLocked before the secret is checked.
func (s *AuthenticationService) ValidateCredentials(ctx context.Context, identifier, secret string) (*Account, error) {
	ctx, span := tracer.Start(ctx, "auth.ValidateCredentials")
	defer span.End()

	now := s.opts.now()

	account, err := s.store.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.equalizeTiming(secret)
			s.opts.metrics.RecordLogin(observability.OutcomeUnknown)
			s.opts.record(ctx, AuditEvent{
				Type:       EventLoginFailed,
				Identifier: NormalizeIdentifier(identifier),
				Outcome:    observability.OutcomeUnknown,
			})
			return nil, errInvalidCredentials()
		}
		s.opts.metrics.RecordLogin(observability.OutcomeError)
		span.SetStatus(codes.Error, "account lookup failed")
		return nil, unavailable("find account by identifier", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	if !account.Active {
		s.opts.metrics.RecordLogin(observability.OutcomeDisabled)
		s.auditFailure(ctx, account, observability.OutcomeDisabled)
		return nil, oops.Code(CodeAccountDisabled).
			With("account_id", account.ID.String()).
			Errorf("account is disabled")
	}

	if status := s.cfg.Lockout.Status(account.FailedAttempts, account.LockedUntil, now); status.IsLockedOut {
		s.opts.metrics.RecordLogin(observability.OutcomeLocked)
		s.auditFailure(ctx, account, observability.OutcomeLocked)
		return nil, oops.Code(CodeAccountLocked).
			With("account_id", account.ID.String()).
			With("locked_until", account.LockedUntil.UTC()).
			With("retry_after", status.Remaining).
			Errorf("account is temporarily locked")
	}

	valid, err := s.hasher.Verify(secret, account.SecretHash)
	if err != nil {
		s.opts.metrics.RecordLogin(observability.OutcomeError)
		span.SetStatus(codes.Error, "secret verification failed")
		return nil, opaque(CodeUnavailable, "verify secret", err)
	}

	if !valid {
		return nil, s.recordFailure(ctx, account, now)
	}

	if err := s.store.RecordSuccess(ctx, account.ID); err != nil {
		s.opts.metrics.RecordLogin(observability.OutcomeError)
		return nil, unavailable("record success", err)
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil

	if s.hasher.NeedsUpgrade(account.SecretHash) {
		s.upgradeHash(ctx, account, secret)
	}

	s.opts.metrics.RecordLogin(observability.OutcomeSuccess)
	return account, nil
}

// recordFailure persists a failed attempt and returns the error to report.
func (s *AuthenticationService) recordFailure(ctx context.Context, account *Account, now time.Time) error {
	policy := s.cfg.Lockout
	updated, err := s.store.RecordFailure(ctx, account.ID, policy.Threshold, policy.LockUntil(now))
	if err != nil {
		s.opts.metrics.RecordLogin(observability.OutcomeError)
		return unavailable("record failure", err)
	}

	if policy.Triggered(updated.FailedAttempts) && updated.IsLockedAt(now) {
		s.opts.metrics.RecordLockout()
		s.opts.logger.InfoContext(ctx, "account locked after repeated failures",
			"account_id", account.ID.String(),
			"failed_attempts", updated.FailedAttempts,
			"locked_until", updated.LockedUntil.UTC())
		s.opts.record(ctx, AuditEvent{
			Type:       EventAccountLocked,
			AccountID:  &account.ID,
			Identifier: account.Identifier,
			Outcome:    observability.OutcomeLocked,
			Detail:     map[string]string{"locked_until": updated.LockedUntil.UTC().Format(time.RFC3339)},
		})
	}

	s.opts.metrics.RecordLogin(observability.OutcomeRejected)
	s.auditFailure(ctx, account, observability.OutcomeRejected)
	return errInvalidCredentials()
}

func (s *AuthenticationService) auditFailure(ctx context.Context, account *Account, outcome string) {
	s.opts.record(ctx, AuditEvent{
		Type:       EventLoginFailed,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    outcome,
	})
}

// upgradeHash rehashes a verified secret with the current algorithm and cost.
func (s *AuthenticationService) upgradeHash(ctx context.Context, account *Account, secret string) {
	newHash, err := s.hasher.Hash(secret)
	if err != nil {
		s.opts.bestEffort(ctx, "upgrade_hash", account.ID, err)
		return
	}
	if err := s.store.UpgradeSecretHash(ctx, account.ID, account.SecretHash, newHash); err != nil {
		s.opts.bestEffort(ctx, "upgrade_hash", account.ID, err)
		return
	}
	account.SecretHash = newHash
}

// equalizeTiming runs a verification against a throwaway hash so unknown
// identifiers take about as long as wrong secrets.
func (s *AuthenticationService) equalizeTiming(secret string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(timingSecret)
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(secret, s.dummyHash) //nolint:errcheck // result is discarded by design
}

// Login validates credentials, issues a token pair and records the login.
func (s *AuthenticationService) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	account, err := s.ValidateCredentials(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}

	tokens, err := s.sessions.Issue(account)
	if err != nil {
		return nil, err
	}

	now := s.opts.now().UTC()
	if err := s.store.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.opts.bestEffort(ctx, "touch_last_login", account.ID, err)
	} else {
		account.LastLoginAt = &now
	}

	s.opts.record(ctx, AuditEvent{
		Type:       EventLoginSucceeded,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})

	return &LoginResult{
		Tokens: tokens,
		Account: AccountSummary{
			ID:               account.ID,
			Identifier:       account.Identifier,
			DisplayName:      account.DisplayName,
			Permissions:      append([]string(nil), account.Permissions...),
			MustChangeSecret: account.MustChangeSecret,
		},
	}, nil
}

// Logout records the end of a session. Tokens stay valid until they expire.
func (s *AuthenticationService) Logout(ctx context.Context, accountID ulid.ULID) {
	s.opts.record(ctx, AuditEvent{
		Type:      EventLogout,
		AccountID: &accountID,
		Outcome:   observability.OutcomeSuccess,
	})
}
