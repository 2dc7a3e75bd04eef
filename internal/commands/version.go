package commands

import (
	"fmt"

	"github.com/opendrive/server/internal/handlers"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "opendrive %s\n", handlers.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
