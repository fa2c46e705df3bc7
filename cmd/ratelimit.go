package cmd

import (
	"fmt"
	"io"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/ghclient"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Check GitHub API rate limit status",
		Long:  `Display current GitHub API rate limit status including remaining quota and reset time.`,
	}
	cmd.AddCommand(NewCmdRateLimitStatus())
	return cmd
}

// NewCmdRateLimitStatus creates the ratelimit status subcommand.
func NewCmdRateLimitStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current rate limit status",
		Long: `Display the current GitHub API rate limit status for the core and search APIs.
Without GITHUB_TOKEN the anonymous limit of 60 requests per hour applies.`,
		RunE: runRateLimitStatus,
	}
}

func runRateLimitStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := ghclient.NewClient(cmd.Context(), cfg.GetGitHubToken())
	if err != nil {
		return err
	}

	limits, err := client.RateLimits(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	auth := "anonymous"
	if client.Authenticated() {
		auth = "token"
	}
	fmt.Fprintf(w, "GitHub API Rate Limits (%s):\n\n", auth)
	printRate(w, "Core API:  ", limits.Core)
	printRate(w, "Search API:", limits.Search)
	printRate(w, "GraphQL:   ", limits.GraphQL)

	if status := ghclient.GetRateLimitStatus(); status.Limit > 0 && status.Remaining < constants.RateLimitLowWatermark {
		fmt.Fprintf(w, "\nRunning low: issue fetches will serve cached pages once the limit is reached.\n")
	}
	return nil
}

func printRate(w io.Writer, label string, rate *gh.Rate) {
	if rate == nil {
		return
	}
	resetIn := time.Until(rate.Reset.Time).Round(time.Second)
	if resetIn < 0 {
		resetIn = 0
	}
	fmt.Fprintf(w, "%s %d/%d remaining (resets in %s)\n", label, rate.Remaining, rate.Limit, resetIn)
}
