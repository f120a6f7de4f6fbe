package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harjot96/POS/internal/config"
	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/httpapi"
	"github.com/harjot96/POS/internal/service"
)

var (
	tokenRole string
	tokenTTL  time.Duration
)

// posd token <shopkeeperId> prints a bearer token signed with AUTH_SECRET,
// for local use when the auth provider is not running.
var tokenCmd = &cobra.Command{
	Use:   "token <shopkeeperId>",
	Short: "Mint a development bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := validateSecurityConfig(cfg); err != nil {
			return err
		}
		auth := httpapi.NewAuthenticator(cfg.AuthSecret, tokenTTL)
		token, expiresAt, err := auth.IssueToken(domain.Actor{ShopkeeperID: args[0], Role: tokenRole})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", service.RoleUser, "token role (user, staff, admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 8*time.Hour, "token lifetime")
}
