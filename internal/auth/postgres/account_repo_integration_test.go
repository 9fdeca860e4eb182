// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/auth/postgres"
)

func createAccount(ctx context.Context, t *testing.T, repo *postgres.AccountRepository, identifier string) *auth.Account {
	t.Helper()
	account, err := auth.NewAccount(identifier, "Test User", "$2a$04$hash", []string{"exams:read"})
	require.NoError(t, err)
	account.CreatedAt = account.CreatedAt.Truncate(time.Microsecond)
	account.UpdatedAt = account.CreatedAt
	require.NoError(t, repo.Create(ctx, account))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, account.ID.String())
	})
	return account
}

func TestAccountRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(ctx, t, repo, "create@x.com")

	stored, err := repo.FindByIdentifier(ctx, "CREATE@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)
	assert.Equal(t, []string{"exams:read"}, stored.Permissions)
	assert.True(t, stored.Active)

	dup, err := auth.NewAccount("Create@X.com", "Other", "$2a$04$hash", nil)
	require.NoError(t, err)
	err = repo.Create(ctx, dup)
	require.ErrorIs(t, err, auth.ErrConflict)
}

func TestAccountRepository_LockoutCycle(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(ctx, t, repo, "lockout@x.com")
	lockUntil := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Microsecond)

	for i := 1; i < 5; i++ {
		updated, err := repo.RecordFailure(ctx, account.ID, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, updated.FailedAttempts)
		assert.Nil(t, updated.LockedUntil)
	}

	updated, err := repo.RecordFailure(ctx, account.ID, 5, lockUntil)
	require.NoError(t, err)
	require.NotNil(t, updated.LockedUntil)
	assert.True(t, updated.LockedUntil.Equal(lockUntil))

	require.NoError(t, repo.RecordSuccess(ctx, account.ID))
	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestAccountRepository_ConcurrentFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(ctx, t, repo, "concurrent@x.com")
	lockUntil := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordFailure(ctx, account.ID, 100, lockUntil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, stored.FailedAttempts)
}

func TestAccountRepository_RecoveryCodes(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	first := createAccount(ctx, t, repo, "first@x.com")
	second := createAccount(ctx, t, repo, "second@x.com")
	expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.SetRecoveryCode(ctx, first.ID, "code-a", expires))

	err := repo.SetRecoveryCode(ctx, second.ID, "code-a", expires)
	require.ErrorIs(t, err, auth.ErrConflict, "code hashes are unique across accounts")

	found, err := repo.FindByRecoveryCode(ctx, "code-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	// A replaced code cannot be cleared or consumed through its old hash.
	require.NoError(t, repo.SetRecoveryCode(ctx, first.ID, "code-b", expires))
	require.NoError(t, repo.ClearRecoveryCode(ctx, first.ID, "code-a"))
	err = repo.ConsumeRecoveryCode(ctx, first.ID, "code-a", "$2a$04$new")
	require.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.ConsumeRecoveryCode(ctx, first.ID, "code-b", "$2a$04$new"))
	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$new", stored.SecretHash)
	assert.Nil(t, stored.RecoveryCodeHash)
	assert.Nil(t, stored.RecoveryExpiresAt)

	_, err = repo.FindByRecoveryCode(ctx, "code-b")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountRepository_SecretUpdates(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)
	account := createAccount(ctx, t, repo, "secret@x.com")
	_, err := testPool.Exec(ctx, `UPDATE accounts SET must_change_secret = TRUE WHERE id = $1`, account.ID.String())
	require.NoError(t, err)

	err = repo.UpgradeSecretHash(ctx, account.ID, "$stale", "$2a$12$up")
	require.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.UpgradeSecretHash(ctx, account.ID, account.SecretHash, "$2a$12$up"))
	stored, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$12$up", stored.SecretHash)
	assert.True(t, stored.MustChangeSecret, "upgrade keeps must_change_secret")

	require.NoError(t, repo.UpdateSecret(ctx, account.ID, "$2a$12$changed"))
	stored, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, stored.MustChangeSecret)

	require.NoError(t, repo.SetActive(ctx, account.ID, false))
	stored, err = repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}
