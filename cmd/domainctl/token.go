package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/customdomains/internal/config"
	"github.com/jmerrifield20/customdomains/internal/identity"
	"github.com/spf13/cobra"
)

var (
	tokenOwner string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development session token for an owner",
	Long: `token signs a session token with the service's auth.jwt_secret. It is meant
for local development and tests; production tokens come from the auth service.

  export DOMAINCTL_TOKEN=$(domainctl token --owner 7f9c...)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenOwner == "" {
			return errors.New("--owner is required")
		}
		cfg, _, err := config.Load(config.New())
		if err != nil {
			return err
		}
		tokens, err := identity.NewOwnerTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Audience, tokenTTL)
		if err != nil {
			return fmt.Errorf("auth.jwt_secret: %w", err)
		}
		signed, err := tokens.Issue(tokenOwner)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner identifier (token subject)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}
