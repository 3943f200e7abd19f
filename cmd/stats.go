package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"stats"},
	Short:   "Analyzes merged pull requests of a repository and outputs JSON",
	Long: `Collects the pull requests merged in the last --days days together with their
reviews, then outputs merges per day, approvals per reviewer and keyword hits in JSON format.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		providerName, _ := cmd.Flags().GetString("provider")
		repoURL, _ := cmd.Flags().GetString("repo")
		days, _ := cmd.Flags().GetInt("days")
		keywords, _ := cmd.Flags().GetStringSlice("keyword")
		summary, _ := cmd.Flags().GetBool("summary")

		provider, err := domain.ParseProvider(providerName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if days < 0 {
			fmt.Fprintln(os.Stderr, "Error: --days must not be negative.")
			os.Exit(1)
		}

		a, err := newApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = a.logger.Sync() }()

		if result := a.authenticate(ctx, provider); !result.OK {
			fmt.Fprintln(os.Stderr, result.Message)
			os.Exit(1)
		}

		report, err := a.aggregator(provider).Run(ctx, repoURL, days, keywords, summary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to analyze pull requests: %v\n", err)
			os.Exit(1)
		}

		// Marshal the report into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal results to JSON: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("provider", "p", string(domain.ProviderGitHub), "Provider hosting the repository (github or bitbucket)")
	analyzeCmd.Flags().StringP("repo", "r", "", "Repository URL, e.g. https://github.com/owner/repo (required)")
	analyzeCmd.Flags().IntP("days", "d", 30, "Number of days back to include merged pull requests from")
	analyzeCmd.Flags().StringSliceP("keyword", "k", nil, "Keyword to count in pull request titles and bodies (repeatable)")
	analyzeCmd.Flags().Bool("summary", false, "Include distribution summaries of the frequency tables")
	analyzeCmd.MarkFlagRequired("repo")
}
