// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package memstore provides an in-memory auth.AccountStore for tests and
// local development. Every method runs under a single mutex, which makes
// each call atomic with respect to all others.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/auth"
)

// Store is an in-memory AccountStore. Accounts are copied on the way in and
// out so callers never alias stored state.
type Store struct {
	mu           sync.RWMutex
	accounts     map[ulid.ULID]*auth.Account
	byIdentifier map[string]ulid.ULID
	byCode       map[string]ulid.ULID
	now          func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:     make(map[ulid.ULID]*auth.Account),
		byIdentifier: make(map[string]ulid.ULID),
		byCode:       make(map[string]ulid.ULID),
		now:          time.Now,
	}
}

// FindByIdentifier retrieves an account by identifier (case-insensitive).
func (s *Store) FindByIdentifier(_ context.Context, identifier string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentifier[auth.NormalizeIdentifier(identifier)]
	if !ok {
		return nil, notFound("identifier", identifier)
	}
	return s.accounts[id].Clone(), nil
}

// FindByID retrieves an account by ID.
func (s *Store) FindByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, notFound("account_id", id.String())
	}
	return a.Clone(), nil
}

// FindByRecoveryCode retrieves the account holding codeHash, expired or not.
func (s *Store) FindByRecoveryCode(_ context.Context, codeHash string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[codeHash]
	if !ok {
		return nil, oops.With("operation", "find by recovery code").Wrap(auth.ErrNotFound)
	}
	return s.accounts[id].Clone(), nil
}

// Create stores a new account.
func (s *Store) Create(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identifier := auth.NormalizeIdentifier(account.Identifier)
	if _, exists := s.byIdentifier[identifier]; exists {
		return oops.With("identifier", identifier).Wrap(auth.ErrConflict)
	}
	if _, exists := s.accounts[account.ID]; exists {
		return oops.With("account_id", account.ID.String()).Wrap(auth.ErrConflict)
	}
	stored := account.Clone()
	stored.Identifier = identifier
	s.accounts[stored.ID] = stored
	s.byIdentifier[identifier] = stored.ID
	if stored.RecoveryCodeHash != nil {
		s.byCode[*stored.RecoveryCodeHash] = stored.ID
	}
	return nil
}

// Count returns the number of stored accounts.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}

// RecordFailure increments the counter and locks at the threshold.
func (s *Store) RecordFailure(_ context.Context, id ulid.ULID, threshold int, lockUntil time.Time) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, notFound("account_id", id.String())
	}
	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		until := lockUntil
		a.LockedUntil = &until
	}
	a.UpdatedAt = s.now().UTC()
	return a.Clone(), nil
}

// RecordSuccess resets the counter and clears the lockout.
func (s *Store) RecordSuccess(_ context.Context, id ulid.ULID) error {
	return s.update(id, func(a *auth.Account) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
	})
}

// TouchLastLogin sets the last-login timestamp.
func (s *Store) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return s.update(id, func(a *auth.Account) {
		t := at
		a.LastLoginAt = &t
	})
}

// SetRecoveryCode binds codeHash to the account, replacing any prior code.
func (s *Store) SetRecoveryCode(_ context.Context, id ulid.ULID, codeHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return notFound("account_id", id.String())
	}
	if holder, taken := s.byCode[codeHash]; taken && holder != id {
		return oops.With("operation", "set recovery code").Wrap(auth.ErrConflict)
	}
	if a.RecoveryCodeHash != nil {
		delete(s.byCode, *a.RecoveryCodeHash)
	}
	h, exp := codeHash, expiresAt
	a.RecoveryCodeHash = &h
	a.RecoveryExpiresAt = &exp
	a.UpdatedAt = s.now().UTC()
	s.byCode[codeHash] = id
	return nil
}

// ClearRecoveryCode clears the recovery code if it still equals codeHash.
// A code that was already replaced or consumed is left alone.
func (s *Store) ClearRecoveryCode(_ context.Context, id ulid.ULID, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return notFound("account_id", id.String())
	}
	if a.RecoveryCodeHash == nil || *a.RecoveryCodeHash != codeHash {
		return nil
	}
	s.clearCode(a)
	a.UpdatedAt = s.now().UTC()
	return nil
}

// ConsumeRecoveryCode sets the new secret and clears the code, lockout and
// counter, only if the stored code still equals codeHash.
func (s *Store) ConsumeRecoveryCode(_ context.Context, id ulid.ULID, codeHash, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.RecoveryCodeHash == nil || *a.RecoveryCodeHash != codeHash {
		return oops.With("operation", "consume recovery code").Wrap(auth.ErrNotFound)
	}
	s.clearCode(a)
	a.SecretHash = secretHash
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.MustChangeSecret = false
	a.UpdatedAt = s.now().UTC()
	return nil
}

// UpgradeSecretHash replaces the secret hash if it still equals oldHash.
func (s *Store) UpgradeSecretHash(_ context.Context, id ulid.ULID, oldHash, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.SecretHash != oldHash {
		return oops.With("operation", "upgrade secret hash").Wrap(auth.ErrNotFound)
	}
	a.SecretHash = newHash
	a.UpdatedAt = s.now().UTC()
	return nil
}

// UpdateSecret replaces the secret hash and clears MustChangeSecret.
func (s *Store) UpdateSecret(_ context.Context, id ulid.ULID, secretHash string) error {
	return s.update(id, func(a *auth.Account) {
		a.SecretHash = secretHash
		a.MustChangeSecret = false
	})
}

// SetActive activates or deactivates an account.
func (s *Store) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	return s.update(id, func(a *auth.Account) {
		a.Active = active
	})
}

func (s *Store) update(id ulid.ULID, fn func(*auth.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return notFound("account_id", id.String())
	}
	fn(a)
	a.UpdatedAt = s.now().UTC()
	return nil
}

// clearCode must be called with s.mu held.
func (s *Store) clearCode(a *auth.Account) {
	if a.RecoveryCodeHash != nil {
		delete(s.byCode, *a.RecoveryCodeHash)
	}
	a.RecoveryCodeHash = nil
	a.RecoveryExpiresAt = nil
}

func notFound(key, value string) error {
	return oops.With(key, value).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.AccountStore = (*Store)(nil)
