// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/pkg/errutil"
)

// fakeRunner implements schemaRunner without a database.
type fakeRunner struct {
	upErr          error
	downErr        error
	stepsErr       error
	version        uint
	dirty          bool
	versionErr     error
	forceErr       error
	closeSourceErr error
	closeDBErr     error

	steps  []int
	forced []int
}

func (f *fakeRunner) Up() error   { return f.upErr }
func (f *fakeRunner) Down() error { return f.downErr }
func (f *fakeRunner) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}
func (f *fakeRunner) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeRunner) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.forceErr
}
func (f *fakeRunner) Close() (error, error) { return f.closeSourceErr, f.closeDBErr }

var errBoom = errors.New("boom")

func newTestMigrator(r *fakeRunner) *Migrator {
	return &Migrator{
		runner: r,
		migrations: []Migration{
			{Version: 1, Name: "accounts"},
			{Version: 2, Name: "audit"},
			{Version: 3, Name: "sessions"},
		},
	}
}

func TestDriverURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/authcore", "pgx5://u:p@db:5432/authcore"},
		{"postgresql://db/authcore?sslmode=disable", "pgx5://db/authcore?sslmode=disable"},
		{"pgx5://db/authcore", "pgx5://db/authcore"},
		{"mysql://db/x", "mysql://db/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, driverURL(tt.in))
		})
	}
}

func TestNewMigrator_UnknownScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/authcore")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := EmbeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, Migration{Version: 1, Name: "accounts"}, migrations[0])
	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}
}

func TestMigrator_Up(t *testing.T) {
	require.NoError(t, newTestMigrator(&fakeRunner{}).Up())
	require.NoError(t, newTestMigrator(&fakeRunner{upErr: migrate.ErrNoChange}).Up())

	err := newTestMigrator(&fakeRunner{upErr: errBoom}).Up()
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.ErrorIs(t, err, errBoom)
}

func TestMigrator_Down(t *testing.T) {
	require.NoError(t, newTestMigrator(&fakeRunner{downErr: migrate.ErrNoChange}).Down())

	err := newTestMigrator(&fakeRunner{downErr: errBoom}).Down()
	errutil.AssertErrorCode(t, err, "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Steps(t *testing.T) {
	r := &fakeRunner{}
	m := newTestMigrator(r)

	require.NoError(t, m.Steps(0))
	assert.Empty(t, r.steps, "zero steps is a no-op")

	require.NoError(t, m.Steps(-1))
	assert.Equal(t, []int{-1}, r.steps)

	r.stepsErr = errBoom
	err := m.Steps(2)
	errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorContext(t, err, "steps", 2)
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := newTestMigrator(&fakeRunner{versionErr: migrate.ErrNilVersion}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	v, dirty, err = newTestMigrator(&fakeRunner{version: 2, dirty: true}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	_, _, err = newTestMigrator(&fakeRunner{versionErr: errBoom}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	r := &fakeRunner{}
	m := newTestMigrator(r)

	err := m.Force(-1)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, r.forced, "negative version never reaches the runner")

	require.NoError(t, m.Force(1))
	assert.Equal(t, []int{1}, r.forced)

	r.forceErr = errBoom
	err = m.Force(1)
	errutil.AssertErrorCode(t, err, "MIGRATION_FORCE_FAILED")
	errutil.AssertErrorContext(t, err, "version", 1)
}

func TestMigrator_Status(t *testing.T) {
	t.Run("partially applied", func(t *testing.T) {
		st, err := newTestMigrator(&fakeRunner{version: 2}).Status()
		require.NoError(t, err)
		assert.Equal(t, uint(2), st.Current)
		assert.Len(t, st.Applied, 2)
		require.Len(t, st.Pending, 1)
		assert.Equal(t, uint(3), st.Pending[0].Version)
	})

	t.Run("empty database", func(t *testing.T) {
		st, err := newTestMigrator(&fakeRunner{versionErr: migrate.ErrNilVersion}).Status()
		require.NoError(t, err)
		assert.Empty(t, st.Applied)
		assert.Len(t, st.Pending, 3)
	})

	t.Run("version failure", func(t *testing.T) {
		_, err := newTestMigrator(&fakeRunner{versionErr: errBoom}).Status()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		srcErr    error
		dbErr     error
		component string
	}{
		{name: "source", srcErr: errBoom, component: "source"},
		{name: "database", dbErr: errBoom, component: "database"},
		{name: "both", srcErr: errBoom, dbErr: errors.New("db gone"), component: "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestMigrator(&fakeRunner{closeSourceErr: tt.srcErr, closeDBErr: tt.dbErr}).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	require.NoError(t, newTestMigrator(&fakeRunner{}).Close())
}
