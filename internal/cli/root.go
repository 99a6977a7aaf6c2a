// Package cli implements the studydash command-line interface using Cobra.
// Each subcommand maps to an engagement engine operation.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "studydash",
	Short: "Streaks, XP and daily challenges for student dashboards",
	Long: `studydash is the engagement engine behind the student dashboard.
It records completions, keeps streaks and levels, grants achievements,
rotates daily challenges and ranks institutions on monthly leaderboards.

Run 'studydash serve' to expose the JSON API, or use the subcommands
below against the configured store directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
