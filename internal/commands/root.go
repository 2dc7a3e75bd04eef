package commands

import (
	"fmt"
	"os"

	"github.com/opendrive/server/internal/config"
	"github.com/opendrive/server/pkg/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "opendrive",
	Short: "Open Drive: a small personal file storage server",
	Long: `Open Drive serves a per-user folder tree over HTTP.

Configuration is read from the environment (and a .env file when present):
  opendrive            Start the web server (same as "serve")
  opendrive serve      Start the web server
  opendrive migrate    Create or update the database schema`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init()
		cfg = config.Load()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg)
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
