// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/auth"
)

func newRequestResetCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "request-reset IDENTIFIER",
		Short: "Send a recovery code",
		Long: `Generate a recovery code for IDENTIFIER and hand it to the notifier.
The output is the same whether or not the account exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.recovery()
				if err != nil {
					return err
				}
				if err := svc.RequestReset(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), auth.MessageResetRequested)
				return nil
			})
		},
	}
}

func newResetSecretCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-secret CODE",
		Short: "Set a new secret using a recovery code",
		Long:  `Consume recovery CODE and set the secret read from the first line of stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.recovery()
				if err != nil {
					return err
				}
				if err := svc.ResetWithCode(cmd.Context(), args[0], secret); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "secret updated")
				return nil
			})
		},
	}
}

func newCheckCodeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check-code CODE",
		Short: "Report whether a recovery code is currently valid",
		Long:  `Check CODE without consuming it. Prints "valid" or "invalid".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.recovery()
				if err != nil {
					return err
				}
				ok, err := svc.ValidateResetCode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintln(cmd.OutOrStdout(), "valid")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "invalid")
				}
				return nil
			})
		},
	}
}

func newChangeSecretCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "change-secret IDENTIFIER",
		Short: "Change an account's secret",
		Long: `Change the secret of IDENTIFIER. The current secret is read from the
first line of stdin and the new secret from the second.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := readSecrets(cmd.InOrStdin(), 2)
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(rt *runtime) error {
				provisioning, err := rt.provisioning()
				if err != nil {
					return err
				}
				account, err := provisioning.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				svc, err := rt.recovery()
				if err != nil {
					return err
				}
				if err := svc.ChangeSecret(cmd.Context(), account.ID, secrets[0], secrets[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "secret changed")
				return nil
			})
		},
	}
}
