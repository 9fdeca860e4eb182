// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Command authcore administers the account authentication core: schema
// migrations, account provisioning, unlocks, recovery codes and the
// metrics endpoint.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd(nil)
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
