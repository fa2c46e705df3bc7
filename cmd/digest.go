package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/internal/cache"
	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/format"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/output"
	"github.com/issueradar/issueradar/internal/store"
	"github.com/issueradar/issueradar/internal/tui"
)

// NewCmdDigest creates the digest command with subcommands.
func NewCmdDigest(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "digest",
		Aliases: []string{"digests"},
		Short:   "Generate and manage AI summaries of a project's issues",
	}

	cmd.AddCommand(newCmdDigestGenerate(opts))
	cmd.AddCommand(newCmdDigestList(opts))
	cmd.AddCommand(newCmdDigestShow(opts))
	cmd.AddCommand(newCmdDigestPublish())
	cmd.AddCommand(newCmdDigestDelete())
	cmd.AddCommand(newCmdDigestFlush(opts))

	return cmd
}

type generateOptions struct {
	instruction string
	state       string
	maxPages    int
}

func newCmdDigestGenerate(opts *Options) *cobra.Command {
	var o generateOptions

	cmd := &cobra.Command{
		Use:   "generate <project>",
		Short: "Summarise a project's issues and store the digest",
		Long: `Fetch the project's issues, ask the configured model for a summary and
store it as the project's active digest. If the digest cannot be stored it is kept
locally; run 'issueradar digest flush' to store it later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigestGenerate(cmd, args[0], o, opts)
		},
	}

	cmd.Flags().StringVar(&o.instruction, "instruction", "", "Extra instruction for the model (default from config)")
	cmd.Flags().StringVar(&o.state, "state", "", "Issue state: open, closed or all (default from config)")
	cmd.Flags().IntVar(&o.maxPages, "max-pages", 0, "Issue pages to summarise (default from config)")

	return cmd
}

func runDigestGenerate(cmd *cobra.Command, projectArg string, o generateOptions, opts *Options) error {
	ctx := cmd.Context()

	// Setup
	rt, cleanup, err := setupRuntime(opts, tui.DigestTasks())
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.resolveProject(ctx, projectArg)
	if err != nil {
		return err
	}
	formatter, err := a.formatter(opts)
	if err != nil {
		return err
	}

	svc, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	completer, release, err := newCompleter(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer release()

	dopts := a.digestOptions(svc.cache, rt.observeDigest)
	if o.instruction != "" {
		dopts.Instruction = o.instruction
	}
	if o.state != "" {
		if dopts.State, err = model.ParseIssueState(o.state); err != nil {
			return err
		}
	}
	if o.maxPages > 0 {
		dopts.MaxPages = o.maxPages
	}
	composer := digest.NewComposer(svc.issues, completer, a.store, dopts)

	rt.startTUI()
	defer rt.close()

	if err := authenticate(ctx, rt, svc); err != nil {
		return err
	}

	// Generate
	d, err := composer.Generate(ctx, project.ID)

	// Output
	rt.close()
	if err != nil {
		return err
	}
	return formatter.FormatDigest(d, cmd.OutOrStdout())
}

func newCmdDigestList(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "list <project>",
		Aliases: []string{"ls"},
		Short:   "List a project's digests, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			project, err := a.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			digests, err := a.store.ListDigests(cmd.Context(), a.user.ID, project.ID)
			if err != nil {
				return err
			}
			formatter, err := a.formatter(opts)
			if err != nil {
				return err
			}
			return formatter.FormatDigests(digests, cmd.OutOrStdout())
		},
	}
}

func newCmdDigestShow(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project|digest>",
		Short: "Show a project's active digest, or one digest by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			formatter, err := a.formatter(opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			project, err := a.resolveProject(ctx, args[0])
			switch {
			case err == nil:
				d, total, err := a.store.LatestDigest(ctx, a.user.ID, project.ID)
				if err != nil {
					return err
				}
				if err := formatter.FormatDigest(d, w); err != nil {
					return err
				}
				if _, ok := formatter.(*output.TableFormatter); ok && total > 1 {
					fmt.Fprintf(w, "\n(%d digests for %s; see 'issueradar digest list %s')\n", total, project.Name, format.ShortID(project.ID))
				}
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}

			d, err := a.resolveDigest(ctx, args[0])
			if err != nil {
				return err
			}
			return formatter.FormatDigest(d, w)
		},
	}
}

func newCmdDigestPublish() *cobra.Command {
	var unpublish bool

	cmd := &cobra.Command{
		Use:   "publish <digest>",
		Short: "Mark a digest as published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.resolveDigest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			published := !unpublish
			updated, err := a.store.UpdateDigest(cmd.Context(), a.user.ID, store.DigestUpdate{ID: d.ID, Published: &published})
			if err != nil {
				return err
			}
			verb := "Published"
			if !updated.Published {
				verb = "Unpublished"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s digest %s\n", verb, updated.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unpublish, "unpublish", false, "Mark the digest as not published")

	return cmd
}

func newCmdDigestDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <digest>",
		Aliases: []string{"rm"},
		Short:   "Delete a digest",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.resolveDigest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteDigest(cmd.Context(), a.user.ID, d.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted digest %s\n", d.ID)
			return nil
		},
	}
}

func newCmdDigestFlush(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Store digests that were generated but could not be saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := cache.NewCache(a.cfg.GetFetchSettings().CacheTTL)
			if err != nil {
				return fmt.Errorf("failed to access cache: %w", err)
			}

			composer := digest.NewComposer(nil, nil, a.store, a.digestOptions(c, nil))
			saved, flushErr := composer.FlushPending(ctx)

			w := cmd.OutOrStdout()
			if len(saved) == 0 && flushErr == nil {
				fmt.Fprintln(w, "No pending digests.")
				return nil
			}
			if len(saved) > 0 {
				formatter, err := a.formatter(opts)
				if err != nil {
					return err
				}
				if err := formatter.FormatDigests(saved, w); err != nil {
					return err
				}
			}
			if flushErr != nil {
				return fmt.Errorf("some digests are still pending: %w", flushErr)
			}
			return nil
		},
	}
}
