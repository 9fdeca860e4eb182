// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		names[entry.Name()] = true
		assert.True(t, pattern.MatchString(entry.Name()),
			"file %s should match NNNNNN_name.(up|down).sql", entry.Name())
	}

	assert.True(t, names["000001_accounts.up.sql"])
	assert.True(t, names["000001_accounts.down.sql"])

	// Every up migration has a matching down migration.
	for name := range names {
		if up, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[up+".down.sql"], "missing down migration for %s", name)
		}
	}
}

func TestAccountsSchema_Constraints(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_accounts.up.sql")
	require.NoError(t, err)
	schema := string(data)

	assert.Contains(t, schema, "CHECK (failed_attempts >= 0)")
	assert.Contains(t, schema, "ON accounts (lower(identifier))")
	assert.Contains(t, schema, "WHERE recovery_code_hash IS NOT NULL")
}
