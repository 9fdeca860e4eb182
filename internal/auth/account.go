// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identifier validation constraints.
const (
	MaxIdentifierLength  = 255
	MaxDisplayNameLength = 255
)

// identifierRegex is a pragmatic email shape check; delivery is the
// notifier's problem, not ours.
var identifierRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Account represents an authenticatable identity.
type Account struct {
	ID                ulid.ULID
	Identifier        string
	DisplayName       string
	SecretHash        string
	Active            bool
	MustChangeSecret  bool
	Permissions       []string
	FailedAttempts    int
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	RecoveryCodeHash  *string
	RecoveryExpiresAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount creates a validated, active Account.
func NewAccount(identifier, displayName, secretHash string, permissions []string) (*Account, error) {
	identifier = NormalizeIdentifier(identifier)
	if err := ValidateIdentifier(identifier); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, oops.Code(CodeInvalidRequest).Errorf("display name cannot be empty")
	}
	if len(displayName) > MaxDisplayNameLength {
		return nil, oops.Code(CodeInvalidRequest).
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	if secretHash == "" {
		return nil, oops.Code(CodeInvalidRequest).Errorf("secret hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:          ulid.Make(),
		Identifier:  identifier,
		DisplayName: displayName,
		SecretHash:  secretHash,
		Active:      true,
		Permissions: append([]string(nil), permissions...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsLockedAt returns true if the account is locked out at t.
func (a *Account) IsLockedAt(t time.Time) bool {
	return IsLockedOut(a.LockedUntil, t)
}

// HasRecoveryCodeAt returns true if a recovery code is stored and unexpired at t.
func (a *Account) HasRecoveryCodeAt(t time.Time) bool {
	return a.RecoveryCodeHash != nil && a.RecoveryExpiresAt != nil && a.RecoveryExpiresAt.After(t)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	c.Permissions = append([]string(nil), a.Permissions...)
	c.LockedUntil = cloneTime(a.LockedUntil)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	c.RecoveryExpiresAt = cloneTime(a.RecoveryExpiresAt)
	if a.RecoveryCodeHash != nil {
		h := *a.RecoveryCodeHash
		c.RecoveryCodeHash = &h
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NormalizeIdentifier lower-cases and trims an identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// ValidateIdentifier validates an account identifier (an email address).
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return oops.Code(CodeInvalidRequest).Errorf("identifier cannot be empty")
	}
	if len(identifier) > MaxIdentifierLength {
		return oops.Code(CodeInvalidRequest).
			With("max", MaxIdentifierLength).
			Errorf("identifier must be at most %d characters", MaxIdentifierLength)
	}
	if !identifierRegex.MatchString(identifier) {
		return oops.Code(CodeInvalidRequest).Errorf("identifier must be an email address")
	}
	return nil
}

// AccountStore manages account persistence.
//
// Methods that touch counters, lockout or recovery fields must each execute
// as a single atomic operation per account. Implementations return
// ErrNotFound (possibly wrapped) for missing rows and ErrConflict for
// uniqueness violations, and must not attach oops codes to their errors.
type AccountStore interface {
	// FindByIdentifier retrieves an account by identifier (case-insensitive).
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)

	// FindByID retrieves an account by ID.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// FindByRecoveryCode retrieves the account holding the given recovery code hash.
	FindByRecoveryCode(ctx context.Context, codeHash string) (*Account, error)

	// Create stores a new account.
	Create(ctx context.Context, account *Account) error

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int64, error)

	// RecordFailure increments the failed-attempt counter and, when the new
	// value reaches threshold, sets LockedUntil to lockUntil. Returns the
	// updated account.
	RecordFailure(ctx context.Context, id ulid.ULID, threshold int, lockUntil time.Time) (*Account, error)

	// RecordSuccess resets the failed-attempt counter and clears the lockout.
	RecordSuccess(ctx context.Context, id ulid.ULID) error

	// TouchLastLogin sets the last-login timestamp.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// SetRecoveryCode stores a recovery code hash, replacing any prior code.
	// Returns ErrConflict if another account holds the same hash.
	SetRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string, expiresAt time.Time) error

	// ClearRecoveryCode clears the recovery code only if it still equals codeHash.
	ClearRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string) error

	// ConsumeRecoveryCode replaces the secret hash and clears the recovery
	// code, lockout and counter, only if the stored code still equals
	// codeHash. Returns ErrNotFound otherwise.
	ConsumeRecoveryCode(ctx context.Context, id ulid.ULID, codeHash, secretHash string) error

	// UpgradeSecretHash replaces the secret hash only if it still equals
	// oldHash. Used to migrate hashes to the current algorithm or cost.
	UpgradeSecretHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) error

	// UpdateSecret replaces the secret hash and clears MustChangeSecret.
	UpdateSecret(ctx context.Context, id ulid.ULID, secretHash string) error

	// SetActive activates or deactivates an account.
	SetActive(ctx context.Context, id ulid.ULID, active bool) error
}
