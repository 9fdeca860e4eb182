// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// tokenResponse is the JSON shape printed by login and refresh.
type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	Account      *accountResponse `json:"account,omitempty"`
}

type accountResponse struct {
	ID               string   `json:"id"`
	Identifier       string   `json:"identifier"`
	DisplayName      string   `json:"display_name"`
	Permissions      []string `json:"permissions"`
	MustChangeSecret bool     `json:"must_change_secret"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.With("operation", "encode output").Wrap(err)
	}
	return nil
}

func newLoginCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "login IDENTIFIER",
		Short: "Check credentials and print a token pair",
		Long: `Authenticate IDENTIFIER with the secret read from the first line of
stdin. Failed attempts count towards the lockout like any other login.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.authentication()
				if err != nil {
					return err
				}
				result, err := svc.Login(cmd.Context(), args[0], secret)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), tokenResponse{
					AccessToken:  result.Tokens.AccessToken,
					RefreshToken: result.Tokens.RefreshToken,
					TokenType:    result.Tokens.TokenType,
					ExpiresIn:    int64(result.Tokens.ExpiresIn / time.Second),
					Account: &accountResponse{
						ID:               result.Account.ID.String(),
						Identifier:       result.Account.Identifier,
						DisplayName:      result.Account.DisplayName,
						Permissions:      result.Account.Permissions,
						MustChangeSecret: result.Account.MustChangeSecret,
					},
				})
			})
		},
	}
}

func newRefreshCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token read from stdin for an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(rt *runtime) error {
				svc, err := rt.sessions()
				if err != nil {
					return err
				}
				access, err := svc.Refresh(cmd.Context(), token)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), tokenResponse{
					AccessToken: access.Token,
					TokenType:   access.TokenType,
					ExpiresIn:   int64(access.ExpiresIn / time.Second),
				})
			})
		},
	}
}
