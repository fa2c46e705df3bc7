package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/log"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "issueradar",
		Short: "Track repositories and summarise their issues",
		Long: `A CLI tool that follows GitHub and GitLab repositories, lists their
issues and asks a language model for a digest of what is going on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			log.Initialize(opts.Verbosity, os.Stderr)
			return nil
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addGlobalFlags(rootCmd, opts)

	rootCmd.AddCommand(NewCmdParse(opts))
	rootCmd.AddCommand(NewCmdProject(opts))
	rootCmd.AddCommand(NewCmdPost(opts))
	rootCmd.AddCommand(NewCmdIssues(opts))
	rootCmd.AddCommand(NewCmdDigest(opts))
	rootCmd.AddCommand(NewCmdAsk(opts))
	rootCmd.AddCommand(NewCmdServe(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdCache())
	rootCmd.AddCommand(NewCmdVersion())
	rootCmd.AddCommand(NewCmdRateLimit())

	return rootCmd
}

// addGlobalFlags adds the flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command, opts *Options) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Format, "output", "o", "", "Output format (table, json, markdown)")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	// TUI flag with tri-state: nil = auto, true = force, false = disable
	flags.Var(newTUIFlag(opts), "tui", "Enable/disable TUI progress (default: auto-detect)")
	flags.Lookup("tui").NoOptDefVal = "true"

	// Profiling flags
	flags.StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flags.StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	flags.StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
