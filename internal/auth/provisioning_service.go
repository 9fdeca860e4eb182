// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/observability"
)

// PermissionAll grants every permission. It is given to the initial account.
const PermissionAll = "*"

// ProvisionRequest describes an account to create.
type ProvisionRequest struct {
	Identifier       string
	DisplayName      string
	Secret           string
	Permissions      []string
	MustChangeSecret bool
}

// ProvisioningService creates and administers accounts.
type ProvisioningService struct {
	store  AccountStore
	hasher PasswordHasher
	opts   serviceOptions
}

// NewProvisioningService creates a new ProvisioningService.
func NewProvisioningService(store AccountStore, hasher PasswordHasher, opts ...Option) (*ProvisioningService, error) {
	if store == nil {
		return nil, oops.Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &ProvisioningService{
		store:  store,
		hasher: hasher,
		opts:   applyOptions(opts),
	}, nil
}

// SetupInitialAccount creates the first account with PermissionAll.
// It fails with CodeConflict once any account exists.
func (s *ProvisioningService) SetupInitialAccount(ctx context.Context, identifier, displayName, secret string) (*Account, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, unavailable("count accounts", err)
	}
	if count > 0 {
		return nil, oops.Code(CodeConflict).
			With("accounts", count).
			Errorf("initial account already exists")
	}
	return s.Provision(ctx, ProvisionRequest{
		Identifier:  identifier,
		DisplayName: displayName,
		Secret:      secret,
		Permissions: []string{PermissionAll},
	})
}

// Provision validates req, hashes its secret and stores a new active account.
func (s *ProvisioningService) Provision(ctx context.Context, req ProvisionRequest) (*Account, error) {
	ctx, span := tracer.Start(ctx, "auth.Provision")
	defer span.End()

	if err := ValidateSecret(req.Secret); err != nil {
		return nil, err
	}
	secretHash, err := s.hasher.Hash(req.Secret)
	if err != nil {
		return nil, opaque(CodeUnavailable, "hash secret", err)
	}
	account, err := NewAccount(req.Identifier, req.DisplayName, secretHash, req.Permissions)
	if err != nil {
		return nil, err
	}
	account.MustChangeSecret = req.MustChangeSecret

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeConflict).
				With("identifier", account.Identifier).
				Errorf("identifier already registered")
		}
		return nil, unavailable("create account", err)
	}

	s.opts.logger.InfoContext(ctx, "account provisioned",
		"account_id", account.ID.String(),
		"identifier", account.Identifier)
	s.opts.record(ctx, AuditEvent{
		Type:       EventAccountProvisioned,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})
	return account, nil
}

// Lookup returns the account registered under identifier.
func (s *ProvisioningService) Lookup(ctx context.Context, identifier string) (*Account, error) {
	account, err := s.store.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errUnknownAccount("identifier", NormalizeIdentifier(identifier))
		}
		return nil, unavailable("find account by identifier", err)
	}
	return account, nil
}

// Deactivate disables an account. Accounts are never deleted.
func (s *ProvisioningService) Deactivate(ctx context.Context, id ulid.ULID) error {
	if err := s.store.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errUnknownAccount("account_id", id.String())
		}
		return unavailable("deactivate account", err)
	}
	s.opts.record(ctx, AuditEvent{
		Type:      EventAccountDeactivated,
		AccountID: &id,
		Outcome:   observability.OutcomeSuccess,
	})
	return nil
}

// Unlock clears an account's lockout and failed-attempt counter.
func (s *ProvisioningService) Unlock(ctx context.Context, id ulid.ULID) error {
	if err := s.store.RecordSuccess(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errUnknownAccount("account_id", id.String())
		}
		return unavailable("unlock account", err)
	}
	s.opts.record(ctx, AuditEvent{
		Type:      EventAccountUnlocked,
		AccountID: &id,
		Outcome:   observability.OutcomeSuccess,
	})
	return nil
}

func errUnknownAccount(key, value string) error {
	return oops.Code(CodeInvalidRequest).With(key, value).Errorf("account not found")
}
