package cmd

import (
	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/repourl"
)

// NewCmdParse creates the parse command.
func NewCmdParse(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <repo-url>",
		Short: "Show the provider, user and repository of a URL",
		Long: `Classify a repository URL. HTTPS and SSH forms of GitHub and GitLab
URLs are recognised; anything else is reported as UNKNOWN and the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}
}

func runParse(cmd *cobra.Command, input string, opts *Options) error {
	cfg, err := config.Load()
	if err != nil {
		log.Debug("using defaults", "error", err)
	}
	formatter, err := formatterFor(opts, cfg)
	if err != nil {
		return err
	}

	ref := repourl.Parse(input)
	if err := formatter.FormatRef(ref, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !ref.Valid() {
		return repourl.ErrUnsupportedURL
	}
	return nil
}
