// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package postgres implements auth.AccountStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/auth"
)

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountStore using PostgreSQL.
// Every mutation is a single statement, so per-account updates are atomic
// without explicit transactions.
type AccountRepository struct {
	db DB
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, identifier, display_name, secret_hash, active,
	must_change_secret, permissions, failed_attempts, locked_until,
	last_login_at, recovery_code_hash, recovery_expires_at, created_at, updated_at`

// FindByIdentifier retrieves an account by identifier (case-insensitive).
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE lower(identifier) = lower($1)`, identifier)
	return r.scanOne(row, "find account by identifier", "identifier", identifier)
}

// FindByID retrieves an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE id = $1`, id.String())
	return r.scanOne(row, "find account by id", "account_id", id.String())
}

// FindByRecoveryCode retrieves the account holding codeHash, expired or not.
func (r *AccountRepository) FindByRecoveryCode(ctx context.Context, codeHash string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+`
		FROM accounts WHERE recovery_code_hash = $1`, codeHash)
	return r.scanOne(row, "find account by recovery code", "lookup", "recovery_code_hash")
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	permissions := account.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, identifier, display_name, secret_hash, active,
			must_change_secret, permissions, failed_attempts, locked_until,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		account.ID.String(),
		account.Identifier,
		account.DisplayName,
		account.SecretHash,
		account.Active,
		account.MustChangeSecret,
		permissions,
		account.FailedAttempts,
		account.LockedUntil,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.With("operation", "insert account").
				With("identifier", account.Identifier).
				Wrap(auth.ErrConflict)
		}
		return oops.With("operation", "insert account").
			With("identifier", account.Identifier).
			Wrap(err)
	}
	return nil
}

// Count returns the number of stored accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, oops.With("operation", "count accounts").Wrap(err)
	}
	return n, nil
}

// RecordFailure increments the counter and applies the lockout in one
// statement so concurrent failures cannot lose an increment.
func (r *AccountRepository) RecordFailure(ctx context.Context, id ulid.ULID, threshold int, lockUntil time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE
				WHEN failed_attempts + 1 >= $2 THEN $3
				ELSE locked_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(), threshold, lockUntil)
	return r.scanOne(row, "record failed attempt", "account_id", id.String())
}

// RecordSuccess resets the counter and clears any lockout.
func (r *AccountRepository) RecordSuccess(ctx context.Context, id ulid.ULID) error {
	return r.execOne(ctx, "record successful attempt", id, `
		UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1`, id.String())
}

// TouchLastLogin sets the last-login timestamp.
func (r *AccountRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.execOne(ctx, "touch last login", id, `
		UPDATE accounts SET last_login_at = $2, updated_at = now()
		WHERE id = $1`, id.String(), at)
}

// SetRecoveryCode stores a recovery code hash, replacing any prior code.
func (r *AccountRepository) SetRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string, expiresAt time.Time) error {
	err := r.execOne(ctx, "set recovery code", id, `
		UPDATE accounts SET recovery_code_hash = $2, recovery_expires_at = $3, updated_at = now()
		WHERE id = $1`, id.String(), codeHash, expiresAt)
	if isUniqueViolation(err) {
		return oops.With("operation", "set recovery code").
			With("account_id", id.String()).
			Wrap(auth.ErrConflict)
	}
	return err
}

// ClearRecoveryCode clears the code only if it is still codeHash. A newer
// code is left in place and no error is returned.
func (r *AccountRepository) ClearRecoveryCode(ctx context.Context, id ulid.ULID, codeHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE accounts SET recovery_code_hash = NULL, recovery_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND recovery_code_hash = $2`, id.String(), codeHash)
	if err != nil {
		return oops.With("operation", "clear recovery code").
			With("account_id", id.String()).
			Wrap(err)
	}
	return nil
}

// ConsumeRecoveryCode swaps in the new secret hash and clears the code,
// lockout and counter, provided the stored code is still codeHash.
func (r *AccountRepository) ConsumeRecoveryCode(ctx context.Context, id ulid.ULID, codeHash, secretHash string) error {
	return r.execOne(ctx, "consume recovery code", id, `
		UPDATE accounts SET
			secret_hash = $3,
			must_change_secret = FALSE,
			recovery_code_hash = NULL,
			recovery_expires_at = NULL,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = now()
		WHERE id = $1 AND recovery_code_hash = $2`, id.String(), codeHash, secretHash)
}

// UpgradeSecretHash replaces the hash only if it is still oldHash.
func (r *AccountRepository) UpgradeSecretHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) error {
	return r.execOne(ctx, "upgrade secret hash", id, `
		UPDATE accounts SET secret_hash = $3, updated_at = now()
		WHERE id = $1 AND secret_hash = $2`, id.String(), oldHash, newHash)
}

// UpdateSecret replaces the secret hash and clears must_change_secret.
func (r *AccountRepository) UpdateSecret(ctx context.Context, id ulid.ULID, secretHash string) error {
	return r.execOne(ctx, "update secret", id, `
		UPDATE accounts SET secret_hash = $2, must_change_secret = FALSE, updated_at = now()
		WHERE id = $1`, id.String(), secretHash)
}

// SetActive activates or deactivates an account.
func (r *AccountRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	return r.execOne(ctx, "set active", id, `
		UPDATE accounts SET active = $2, updated_at = now()
		WHERE id = $1`, id.String(), active)
}

// execOne runs a single-row update and maps zero affected rows to ErrNotFound.
func (r *AccountRepository) execOne(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return oops.With("operation", operation).
			With("account_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("operation", operation).
			With("account_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) scanOne(row pgx.Row, operation, key, value string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("operation", operation).With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", operation).With(key, value).Wrap(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a     auth.Account
		idStr string
	)
	err := row.Scan(
		&idStr,
		&a.Identifier,
		&a.DisplayName,
		&a.SecretHash,
		&a.Active,
		&a.MustChangeSecret,
		&a.Permissions,
		&a.FailedAttempts,
		&a.LockedUntil,
		&a.LastLoginAt,
		&a.RecoveryCodeHash,
		&a.RecoveryExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("id", idStr).Wrap(err)
	}
	a.ID = id
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
