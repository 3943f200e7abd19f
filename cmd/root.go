// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pr-stats",
	Short: "A CLI tool to analyze merged pull requests on GitHub and Bitbucket.",
	Long: `pr-stats collects the pull requests merged in a time window on GitHub or
Bitbucket, together with their reviews and approvals, and reports merges per day,
approvals per reviewer and keyword hits in pull request text.

Credentials are read from the environment (GITHUB_TOKEN, BITBUCKET_USERNAME,
BITBUCKET_APP_PASSWORD) or from a .env file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to an optional .env file with configuration")
}
