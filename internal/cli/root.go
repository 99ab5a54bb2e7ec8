// Package cli implements the hearth command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Household chores, allowances and savings envelopes",
	Long: `Hearth is a self-hosted household manager: recurring chores with
rotation schedules, allowance rewards, and per-person savings envelopes
with multi-currency balances.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.hearth/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hearth version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hearth %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
