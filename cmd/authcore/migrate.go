// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/config"
)

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
		newMigrateDownCmd(deps),
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, func(m Migrator) error {
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied without running it",
			Long: `Record VERSION as the current schema version and clear the dirty flag.
Use only after repairing a failed migration by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, deps, func(m Migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
	)
	return cmd
}

func newMigrateDownCmd(deps *Deps) *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the last --steps migrations (default 1), or every migration
with --all. Rolling back the accounts migration drops all account data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 && !all {
				return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-steps)
				}
				if err != nil {
					return err
				}
				return printStatus(cmd, m)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")
	return cmd
}

// parseForceVersion parses a non-negative schema version.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	cfg, _, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").
			With("store.driver", cfg.Store.Driver).
			Errorf("migrations require the postgres store")
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	m, err := deps.OpenMigrator(cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(out, "schema version: %d%s\n", st.Current, dirty)
	for _, mig := range st.Applied {
		fmt.Fprintf(out, "  applied  %s\n", migrationLabel(mig.Version, mig.Name))
	}
	for _, mig := range st.Pending {
		fmt.Fprintf(out, "  pending  %s\n", migrationLabel(mig.Version, mig.Name))
	}
	return nil
}

func migrationLabel(version uint, name string) string {
	label := strconv.FormatUint(uint64(version), 10)
	if name != "" {
		label += " " + name
	}
	return label
}
