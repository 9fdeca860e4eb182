// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/auth"
)

func newSetupAdminCmd(deps *Deps) *cobra.Command {
	var identifier, name string
	cmd := &cobra.Command{
		Use:   "setup-admin",
		Short: "Create the first account with every permission",
		Long: `Create the initial administrator account. Refuses to run once any
account exists. The secret is read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.provisioning()
				if err != nil {
					return err
				}
				account, err := svc.SetupInitialAccount(cmd.Context(), identifier, name, secret)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (%s)\n", account.Identifier, account.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "administrator email address")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func newProvisionCmd(deps *Deps) *cobra.Command {
	var req auth.ProvisionRequest
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create an account",
		Long:  `Create an active account. The initial secret is read from the first line of stdin.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Secret = secret
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.provisioning()
				if err != nil {
					return err
				}
				account, err := svc.Provision(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created account %s (%s)\n", account.Identifier, account.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Identifier, "identifier", "", "account email address")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "display name")
	cmd.Flags().StringSliceVar(&req.Permissions, "permission", nil, "permission to grant (repeatable)")
	cmd.Flags().BoolVar(&req.MustChangeSecret, "must-change-secret", false, "require a secret change after first login")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// newAccountActionCmd builds a command that resolves IDENTIFIER and applies action.
func newAccountActionCmd(deps *Deps, use, short, done string,
	action func(cmd *cobra.Command, svc *auth.ProvisioningService, account *auth.Account) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " IDENTIFIER",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.provisioning()
				if err != nil {
					return err
				}
				account, err := svc.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := action(cmd, svc, account); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, account.Identifier)
				return nil
			})
		},
	}
}

func newUnlockCmd(deps *Deps) *cobra.Command {
	return newAccountActionCmd(deps, "unlock", "Clear an account's lockout and failed attempts", "unlocked",
		func(cmd *cobra.Command, svc *auth.ProvisioningService, account *auth.Account) error {
			return svc.Unlock(cmd.Context(), account.ID)
		})
}

func newDeactivateCmd(deps *Deps) *cobra.Command {
	return newAccountActionCmd(deps, "deactivate", "Disable an account", "deactivated",
		func(cmd *cobra.Command, svc *auth.ProvisioningService, account *auth.Account) error {
			return svc.Deactivate(cmd.Context(), account.ID)
		})
}

func newHashSecretCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Print the hash of a secret read from stdin",
		Long: `Hash the first line of stdin with the configured algorithm and cost.
Useful for seeding accounts by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			authCfg, err := cfg.Auth()
			if err != nil {
				return err
			}
			if err := auth.ValidateSecret(secret); err != nil {
				return err
			}
			hasher, err := auth.NewPasswordHasher(authCfg.HashAlgorithm, authCfg.HashCost)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newStatusCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status IDENTIFIER",
		Short: "Show an account's activation and lockout state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.provisioning()
				if err != nil {
					return err
				}
				account, err := svc.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				status := rt.authCfg.Lockout.Status(account.FailedAttempts, account.LockedUntil, time.Now())

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "identifier:      %s\n", account.Identifier)
				fmt.Fprintf(out, "active:          %t\n", account.Active)
				fmt.Fprintf(out, "failed attempts: %d\n", account.FailedAttempts)
				if status.IsLockedOut {
					fmt.Fprintf(out, "locked for:      %s\n", status.Remaining.Round(time.Second))
				} else {
					fmt.Fprintf(out, "attempts left:   %d\n", status.AttemptsLeft)
				}
				return nil
			})
		},
	}
}
