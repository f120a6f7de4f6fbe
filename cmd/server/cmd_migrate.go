package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harjot96/POS/internal/config"
	pgstore "github.com/harjot96/POS/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the postgres schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(pgstore.Up), string(pgstore.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		version, err := pgstore.Migrate(cfg.DatabaseURL, pgstore.Direction(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}
