package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Checks the configured credentials against a provider",
	Run: func(cmd *cobra.Command, args []string) {
		providerName, _ := cmd.Flags().GetString("provider")
		provider, err := domain.ParseProvider(providerName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		a, err := newApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = a.logger.Sync() }()

		result := a.authenticate(context.Background(), provider)
		if !result.OK {
			fmt.Fprintln(os.Stderr, result.Message)
			os.Exit(1)
		}
		fmt.Println(result.Message)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().StringP("provider", "p", string(domain.ProviderGitHub), "Provider to authenticate against (github or bitbucket)")
}
