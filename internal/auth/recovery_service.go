// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/authcore/internal/observability"
)

// maxCodeAttempts bounds retries when a generated code collides with a
// code already held by another account.
const maxCodeAttempts = 5

// Secret change methods, used as a metrics label.
const (
	methodReset  = "reset"
	methodChange = "change"
)

// RecoveryService manages recovery codes and secret changes.
type RecoveryService struct {
	store    AccountStore
	hasher   PasswordHasher
	notifier Notifier
	cfg      Config
	opts     serviceOptions
}

// NewRecoveryService creates a new RecoveryService.
func NewRecoveryService(
	store AccountStore,
	hasher PasswordHasher,
	notifier Notifier,
	cfg Config,
	opts ...Option,
) (*RecoveryService, error) {
	if store == nil {
		return nil, oops.Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RecoveryService{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		cfg:      cfg,
		opts:     applyOptions(opts),
	}, nil
}

// RequestReset issues a recovery code for identifier and sends it.
//
// An unknown identifier returns nil without side effects, so callers always
// show MessageResetRequested. A new code replaces any unconsumed one. If the
// notification cannot be sent the code is withdrawn and the call fails with
// CodeNotificationFailed.
func (s *RecoveryService) RequestReset(ctx context.Context, identifier string) error {
	ctx, span := tracer.Start(ctx, "auth.RequestReset")
	defer span.End()

	account, err := s.store.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.metrics.RecordRecoveryRequest(observability.OutcomeUnknown)
			return nil
		}
		s.opts.metrics.RecordRecoveryRequest(observability.OutcomeError)
		return unavailable("find account by identifier", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	expiresAt := s.opts.now().Add(s.cfg.RecoveryCodeTTL)
	code, codeHash, err := s.storeNewCode(ctx, account.ID, expiresAt)
	if err != nil {
		s.opts.metrics.RecordRecoveryRequest(observability.OutcomeError)
		return err
	}

	if err := s.notifier.SendRecoveryCode(ctx, account.Identifier, account.DisplayName, code, expiresAt); err != nil {
		if rbErr := s.store.ClearRecoveryCode(ctx, account.ID, codeHash); rbErr != nil {
			s.opts.logger.ErrorContext(ctx, "recovery code rollback failed",
				"account_id", account.ID.String(),
				"error", rbErr.Error())
		}
		s.opts.metrics.RecordRecoveryRequest(observability.OutcomeNotifyError)
		return opaque(CodeNotificationFailed, "send recovery code", err)
	}

	s.opts.metrics.RecordRecoveryRequest(observability.OutcomeSuccess)
	s.opts.record(ctx, AuditEvent{
		Type:       EventResetRequested,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})
	return nil
}

// storeNewCode generates a code and binds it to id, retrying on collision.
func (s *RecoveryService) storeNewCode(ctx context.Context, id ulid.ULID, expiresAt time.Time) (code, codeHash string, err error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err = s.opts.codes()
		if err != nil {
			return "", "", opaque(CodeUnavailable, "generate recovery code", err)
		}
		codeHash = HashRecoveryCode(code)

		err = s.store.SetRecoveryCode(ctx, id, codeHash, expiresAt)
		if err == nil {
			return code, codeHash, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", "", unavailable("set recovery code", err)
		}
		s.opts.logger.DebugContext(ctx, "recovery code collision, regenerating",
			"account_id", id.String(),
			"attempt", attempt)
	}
	return "", "", oops.Code(CodeUnavailable).
		With("operation", "set recovery code").
		With("attempts", maxCodeAttempts).
		Errorf("could not allocate a unique recovery code")
}

// ValidateResetCode reports whether code is held by an account and unexpired.
// It has no side effects.
func (s *RecoveryService) ValidateResetCode(ctx context.Context, code string) (bool, error) {
	if !IsWellFormedRecoveryCode(code) {
		return false, nil
	}
	account, err := s.store.FindByRecoveryCode(ctx, HashRecoveryCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, unavailable("find account by recovery code", err)
	}
	return account.HasRecoveryCodeAt(s.opts.now()), nil
}

// ResetWithCode sets a new secret using a recovery code.
//
// An unknown or already used code fails with CodeInvalidToken and an expired
// one with CodeTokenExpired, whatever secret accompanies it. The secret policy
// is only checked for a live code. On success the code, lockout and failed-attempt
// counter are cleared in the same store update as the new secret hash.
func (s *RecoveryService) ResetWithCode(ctx context.Context, code, newSecret string) error {
	ctx, span := tracer.Start(ctx, "auth.ResetWithCode")
	defer span.End()

	if !IsWellFormedRecoveryCode(code) {
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeRejected)
		return errInvalidToken("malformed recovery code")
	}
	codeHash := HashRecoveryCode(code)
	account, err := s.store.FindByRecoveryCode(ctx, codeHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeRejected)
			return errInvalidToken("unknown recovery code")
		}
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeError)
		return unavailable("find account by recovery code", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	if !account.HasRecoveryCodeAt(s.opts.now()) {
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeRejected)
		return oops.Code(CodeTokenExpired).
			With("account_id", account.ID.String()).
			Errorf("recovery code has expired")
	}
	if err := ValidateSecret(newSecret); err != nil {
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeRejected)
		return err
	}

	secretHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeError)
		return opaque(CodeUnavailable, "hash secret", err)
	}

	if err := s.store.ConsumeRecoveryCode(ctx, account.ID, codeHash, secretHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Another request consumed or replaced the code first.
			s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeRejected)
			return errInvalidToken("recovery code already used")
		}
		s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeError)
		return unavailable("consume recovery code", err)
	}

	s.opts.metrics.RecordSecretChange(methodReset, observability.OutcomeSuccess)
	s.opts.record(ctx, AuditEvent{
		Type:       EventResetCompleted,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})
	if err := s.notifier.SendSecretChangedNotice(ctx, account.Identifier, account.DisplayName); err != nil {
		s.opts.bestEffort(ctx, "send_secret_changed_notice", account.ID, err)
	}
	return nil
}

// ChangeSecret replaces the secret of an authenticated account.
//
// A wrong current secret fails with CodeUnauthorized; a new secret equal to
// the current one or violating the secret policy fails with
// CodeInvalidRequest.
func (s *RecoveryService) ChangeSecret(ctx context.Context, accountID ulid.ULID, currentSecret, newSecret string) error {
	ctx, span := tracer.Start(ctx, "auth.ChangeSecret")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID.String()))

	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeRejected)
			return oops.Code(CodeUnauthorized).
				With("account_id", accountID.String()).
				Errorf("account not found")
		}
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeError)
		return unavailable("find account by id", err)
	}
	if !account.Active {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeDisabled)
		return oops.Code(CodeAccountDisabled).
			With("account_id", accountID.String()).
			Errorf("account is disabled")
	}

	valid, err := s.hasher.Verify(currentSecret, account.SecretHash)
	if err != nil {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeError)
		return opaque(CodeUnavailable, "verify secret", err)
	}
	if !valid {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeRejected)
		return oops.Code(CodeUnauthorized).
			With("account_id", accountID.String()).
			Errorf("current secret is incorrect")
	}
	if newSecret == currentSecret {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeRejected)
		return oops.Code(CodeInvalidRequest).Errorf("new secret must differ from the current secret")
	}
	if err := ValidateSecret(newSecret); err != nil {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeRejected)
		return err
	}

	secretHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeError)
		return opaque(CodeUnavailable, "hash secret", err)
	}
	if err := s.store.UpdateSecret(ctx, account.ID, secretHash); err != nil {
		s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeError)
		return unavailable("update secret", err)
	}

	s.opts.metrics.RecordSecretChange(methodChange, observability.OutcomeSuccess)
	s.opts.record(ctx, AuditEvent{
		Type:       EventSecretChanged,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})
	if err := s.notifier.SendSecretChangedNotice(ctx, account.Identifier, account.DisplayName); err != nil {
		s.opts.bestEffort(ctx, "send_secret_changed_notice", account.ID, err)
	}
	return nil
}
