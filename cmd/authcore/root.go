// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/config"
)

// NewRootCmd creates the authcore command tree. A nil deps uses the
// production implementations.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "Account authentication core",
		Long: `authcore manages the account store behind the clinic portal login:
schema migrations, initial and regular account provisioning, lockout
administration, recovery codes and the metrics endpoint.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file path (YAML; default $XDG_CONFIG_HOME/authcore/config.yaml)")
	config.RegisterFlags(flags)

	cmd.AddCommand(
		newMigrateCmd(deps),
		newSetupAdminCmd(deps),
		newProvisionCmd(deps),
		newUnlockCmd(deps),
		newDeactivateCmd(deps),
		newStatusCmd(deps),
		newRequestResetCmd(deps),
		newResetSecretCmd(deps),
		newCheckCodeCmd(deps),
		newChangeSecretCmd(deps),
		newLoginCmd(deps),
		newRefreshCmd(deps),
		newHashSecretCmd(deps),
		newServeMetricsCmd(deps),
	)
	return cmd
}
