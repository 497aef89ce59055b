package main

import (
	"fmt"
	"time"

	"github.com/h4ks-com/fieldops/internal/server"
	"github.com/spf13/cobra"
)

var (
	tokenUser     string
	tokenName     string
	tokenLifetime time.Duration
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Mint an API token for a user",
	Example: `  fieldops token -u ana --name cli --ttl 720h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}
		svc := server.NewServices(db, cfg.JWT.Secret)

		token, row, err := svc.Tokens.GenerateToken(tokenUser, tokenName, tokenLifetime)
		if err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", token)
		fmt.Fprintf(cmd.ErrOrStderr(), "token %d expires %s\n", row.ID, row.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "username (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "cli", "token name")
	tokenCmd.Flags().DurationVar(&tokenLifetime, "ttl", 30*24*time.Hour, "token lifetime")
	tokenCmd.MarkFlagRequired("user")
}
