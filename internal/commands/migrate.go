package commands

import (
	"fmt"

	"github.com/opendrive/server/internal/database"
	"github.com/opendrive/server/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cfg.DB)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		logger.Info("migration_complete", map[string]interface{}{
			"driver": cfg.DB.Driver,
		})
		fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
