package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <account-id>",
		Short: "Mint a bearer token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}

			r := account.Role(role)
			if !r.Valid() {
				return fmt.Errorf("role must be %q or %q", account.RoleClient, account.RoleAdmin)
			}

			v, err := ctx.verifier()
			if err != nil {
				return err
			}

			token, err := v.Sign(account.Actor{AccountID: accountID, Role: r}, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(account.RoleClient), "Role the token carries (client or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
