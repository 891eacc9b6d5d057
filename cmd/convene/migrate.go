package main

import (
	"github.com/spf13/cobra"

	"github.com/convenehq/convene/internal/shared/infrastructure/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		return migrations.Up(cfg.DatabaseURL, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
