package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/store"
)

// NewCmdProject creates the project command with subcommands.
func NewCmdProject(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage tracked repositories",
		Long: `Manage the repositories you follow. Projects can be referred to by id,
by a unique id prefix, or by their repository URL.`,
	}

	cmd.AddCommand(newCmdProjectAdd(opts))
	cmd.AddCommand(newCmdProjectList(opts))
	cmd.AddCommand(newCmdProjectShow(opts))
	cmd.AddCommand(newCmdProjectUpdate(opts))
	cmd.AddCommand(newCmdProjectDelete())

	return cmd
}

type projectFlags struct {
	name        string
	description string
	repoURL     string
	subdomain   string
}

func newCmdProjectAdd(opts *Options) *cobra.Command {
	var f projectFlags

	cmd := &cobra.Command{
		Use:   "add <repo-url>",
		Short: "Start tracking a repository",
		Long: `Start tracking a GitHub or GitLab repository. The name defaults to
user/repo and the subdomain to the repository name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectAdd(cmd, args[0], f, opts)
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "Project name (default: user/repo)")
	cmd.Flags().StringVar(&f.description, "description", "", "Project description")
	cmd.Flags().StringVar(&f.subdomain, "subdomain", "", "Subdomain (default: repository name)")

	return cmd
}

func runProjectAdd(cmd *cobra.Command, rawURL string, f projectFlags, opts *Options) error {
	ref, err := repourl.Require(rawURL)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	p := model.Project{
		Name:        strings.TrimSpace(f.name),
		Description: f.description,
		RepoURL:     strings.TrimSpace(rawURL),
		Subdomain:   f.subdomain,
	}
	if p.Name == "" {
		p.Name = repourl.DefaultProjectName(ref)
	}
	if repourl.SanitizeSubdomain(p.Subdomain) == "" {
		p.Subdomain = repourl.DefaultSubdomain(ref)
	}

	created, err := a.store.CreateProject(cmd.Context(), a.user.ID, p)
	if err != nil {
		return err
	}

	if opts.Format != "" {
		return printProjects(cmd, a, opts, []model.Project{*created})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", created.ID, created.Name)
	return nil
}

func newCmdProjectList(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked repositories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.store.ListProjects(cmd.Context(), a.user.ID)
			if err != nil {
				return err
			}
			return printProjects(cmd, a, opts, projects)
		},
	}
}

func newCmdProjectShow(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printProjects(cmd, a, opts, []model.Project{*p})
		},
	}
}

func newCmdProjectUpdate(opts *Options) *cobra.Command {
	var f projectFlags

	cmd := &cobra.Command{
		Use:   "update <project>",
		Short: "Change a project's name, description, repository or subdomain",
		Long: `Change a project. Only the flags given are updated. The subdomain is
reduced to letters, digits, '-' and '/'; if nothing is left the current one is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectUpdate(cmd, args[0], f, opts)
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "New project name")
	cmd.Flags().StringVar(&f.description, "description", "", "New description")
	cmd.Flags().StringVar(&f.repoURL, "repo-url", "", "New repository URL")
	cmd.Flags().StringVar(&f.subdomain, "subdomain", "", "New subdomain")

	return cmd
}

func runProjectUpdate(cmd *cobra.Command, arg string, f projectFlags, opts *Options) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.resolveProject(cmd.Context(), arg)
	if err != nil {
		return err
	}

	u := store.ProjectUpdate{ID: p.ID}
	flags := cmd.Flags()
	if flags.Changed("name") {
		u.Name = &f.name
	}
	if flags.Changed("description") {
		u.Description = &f.description
	}
	if flags.Changed("repo-url") {
		if _, err := repourl.Require(f.repoURL); err != nil {
			return err
		}
		u.RepoURL = &f.repoURL
	}
	if flags.Changed("subdomain") {
		u.Subdomain = &f.subdomain
	}

	updated, err := a.store.UpdateProject(cmd.Context(), a.user.ID, u)
	if err != nil {
		return err
	}

	if opts.Format != "" {
		return printProjects(cmd, a, opts, []model.Project{*updated})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s (%s, subdomain %s)\n", updated.ID, updated.Name, updated.Subdomain)
	return nil
}

func newCmdProjectDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project>",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a repository and remove its posts and digests",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteProject(cmd.Context(), a.user.ID, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
}

func printProjects(cmd *cobra.Command, a *app, opts *Options, projects []model.Project) error {
	formatter, err := a.formatter(opts)
	if err != nil {
		return err
	}
	return formatter.FormatProjects(projects, cmd.OutOrStdout())
}
