package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/output"
)

// NewCmdPost creates the post command with subcommands.
func NewCmdPost(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post",
		Aliases: []string{"posts"},
		Short:   "Manage articles attached to a project",
	}

	cmd.AddCommand(newCmdPostAdd(opts))
	cmd.AddCommand(newCmdPostList(opts))
	cmd.AddCommand(newCmdPostShow(opts))
	cmd.AddCommand(newCmdPostUpdate(opts))
	cmd.AddCommand(newCmdPostDelete())

	return cmd
}

type postFlags struct {
	title       string
	description string
	content     string
	contentFile string
	slug        string
	published   bool
}

func (f *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Post title")
	cmd.Flags().StringVar(&f.description, "description", "", "Short description")
	cmd.Flags().StringVar(&f.content, "content", "", "Post body")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "Read the post body from a file ('-' for stdin)")
	cmd.Flags().StringVar(&f.slug, "slug", "", "URL slug (default: derived from the id)")
	cmd.Flags().BoolVar(&f.published, "published", false, "Mark the post as published")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

// body returns the post content from --content or --content-file.
func (f *postFlags) body(cmd *cobra.Command) (string, error) {
	if f.contentFile == "" {
		return f.content, nil
	}
	if f.contentFile == "-" {
		data, err := readAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read post content: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(f.contentFile)
	if err != nil {
		return "", fmt.Errorf("failed to read post content: %w", err)
	}
	return string(data), nil
}

func newCmdPostAdd(opts *Options) *cobra.Command {
	var f postFlags

	cmd := &cobra.Command{
		Use:   "add <project>",
		Short: "Write a post for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostAdd(cmd, args[0], &f, opts)
		},
	}

	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runPostAdd(cmd *cobra.Command, projectArg string, f *postFlags, opts *Options) error {
	content, err := f.body(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.resolveProject(cmd.Context(), projectArg)
	if err != nil {
		return err
	}

	created, err := a.store.CreatePost(cmd.Context(), a.user.ID, project.ID, model.Post{
		Title:       strings.TrimSpace(f.title),
		Description: f.description,
		Content:     content,
		Slug:        f.slug,
		Published:   f.published,
	})
	if err != nil {
		return err
	}

	if opts.Format != "" {
		return printPost(cmd, a, opts, created)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created post %s (%s)\n", created.ID, created.Slug)
	return nil
}

func newCmdPostList(opts *Options) *cobra.Command {
	var drafts bool

	cmd := &cobra.Command{
		Use:     "list <project>",
		Aliases: []string{"ls"},
		Short:   "List a project's posts, newest first",
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
			posts, err := a.store.ListPosts(cmd.Context(), a.user.ID, project.ID, !drafts)
			if err != nil {
				return err
			}
			formatter, err := a.formatter(opts)
			if err != nil {
				return err
			}
			return formatter.FormatPosts(posts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&drafts, "drafts", false, "List unpublished posts instead of published ones")

	return cmd
}

func newCmdPostShow(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post>",
		Short: "Show a post with its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.resolvePost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPost(cmd, a, opts, p)
		},
	}
}

func newCmdPostUpdate(opts *Options) *cobra.Command {
	var f postFlags

	cmd := &cobra.Command{
		Use:   "update <post>",
		Short: "Change a post. Only the flags given are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostUpdate(cmd, args[0], &f, opts)
		},
	}

	f.register(cmd)

	return cmd
}

func runPostUpdate(cmd *cobra.Command, arg string, f *postFlags, opts *Options) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.resolvePost(cmd.Context(), arg)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("title") {
		p.Title = strings.TrimSpace(f.title)
	}
	if flags.Changed("description") {
		p.Description = f.description
	}
	if flags.Changed("content") || flags.Changed("content-file") {
		content, err := f.body(cmd)
		if err != nil {
			return err
		}
		p.Content = content
	}
	if flags.Changed("slug") {
		p.Slug = f.slug
	}
	if flags.Changed("published") {
		p.Published = f.published
	}

	updated, err := a.store.UpdatePost(cmd.Context(), a.user.ID, *p)
	if err != nil {
		return err
	}

	if opts.Format != "" {
		return printPost(cmd, a, opts, updated)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated post %s (%s)\n", updated.ID, updated.Slug)
	return nil
}

func newCmdPostDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <post>",
		Aliases: []string{"rm"},
		Short:   "Delete a post",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.resolvePost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeletePost(cmd.Context(), a.user.ID, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s\n", p.ID)
			return nil
		},
	}
}

// printPost renders one post; the table form is followed by the body.
func printPost(cmd *cobra.Command, a *app, opts *Options, p *model.Post) error {
	formatter, err := a.formatter(opts)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if err := formatter.FormatPosts([]model.Post{*p}, w); err != nil {
		return err
	}
	if _, ok := formatter.(*output.TableFormatter); ok && strings.TrimSpace(p.Content) != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimSpace(p.Content))
	}
	return nil
}
