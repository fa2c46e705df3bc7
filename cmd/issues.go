package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/issueradar/issueradar/internal/duration"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/output"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/tui"
)

type issuesOptions struct {
	state    string
	since    string
	page     int
	maxPages int
	workers  int
	all      bool
}

// repoIssues is the issues of one repository.
type repoIssues struct {
	Repo   string        `json:"repo"`
	Issues []model.Issue `json:"issues"`
}

// NewCmdIssues creates the issues command.
func NewCmdIssues(opts *Options) *cobra.Command {
	var o issuesOptions

	cmd := &cobra.Command{
		Use:   "issues [project|repo-url...]",
		Short: "List the issues of one or more repositories",
		Long: `List issues straight from GitHub. Arguments are tracked projects (id,
id prefix or URL) or any repository URL. With --all every tracked project is listed.
Pages are read one after another and paced by fetch.rate; repositories are fetched
concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssues(cmd, args, o, opts)
		},
	}

	cmd.Flags().StringVar(&o.state, "state", "", "Issue state: open, closed or all (default from config)")
	cmd.Flags().StringVarP(&o.since, "since", "s", "", "Only issues updated since (e.g., 1w, 30d, 6mo)")
	cmd.Flags().IntVar(&o.page, "page", 1, "First page to read")
	cmd.Flags().IntVar(&o.maxPages, "max-pages", 0, "Pages to read per repository (default from config)")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 4, "Repositories fetched concurrently")
	cmd.Flags().BoolVar(&o.all, "all", false, "List the issues of every tracked project")

	return cmd
}

func runIssues(cmd *cobra.Command, args []string, o issuesOptions, opts *Options) error {
	ctx := cmd.Context()

	if len(args) == 0 && !o.all {
		return fmt.Errorf("give a project or repository URL, or use --all")
	}

	since, err := duration.Since(o.since, time.Now())
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}

	// Setup
	rt, cleanup, err := setupRuntime(opts, tui.IssueTasks())
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fs := a.cfg.GetFetchSettings()
	state := fs.State
	if o.state != "" {
		if state, err = model.ParseIssueState(o.state); err != nil {
			return err
		}
	}
	maxPages := fs.MaxPages
	if o.maxPages > 0 {
		maxPages = o.maxPages
	}

	targets, err := issueTargets(ctx, a, args, o.all)
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

	rt.startTUI()
	defer rt.close()

	if err := authenticate(ctx, rt, svc); err != nil {
		return err
	}

	// Fetch
	fetchOpts := service.FetchOptions{
		MaxPages: maxPages,
		Query:    model.IssueQuery{Page: o.page, State: state, Since: since},
	}
	results, err := fetchRepos(ctx, rt, svc.issues, targets, fetchOpts, o.workers)
	log.ProgressClear()

	// Output
	rt.close()
	if err != nil {
		return err
	}
	return renderIssues(cmd.OutOrStdout(), formatter, results)
}

// issueTargets resolves the command arguments to repository URLs.
func issueTargets(ctx context.Context, a *app, args []string, all bool) ([]string, error) {
	var targets []string
	if all {
		projects, err := a.store.ListProjects(ctx, a.user.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			targets = append(targets, p.RepoURL)
		}
	}
	for _, arg := range args {
		if ref := repourl.Parse(arg); ref.Valid() {
			targets = append(targets, arg)
			continue
		}
		p, err := a.resolveProject(ctx, arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, p.RepoURL)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no projects tracked yet. Add one with: issueradar project add <repo-url>")
	}
	return targets, nil
}

// authenticate reports who the requests run as.
func authenticate(ctx context.Context, rt *progressRuntime, svc *services) error {
	rt.sendEvent(tui.TaskAuth, tui.StatusRunning)
	login, err := svc.client.Login(ctx)
	if err != nil {
		rt.sendEvent(tui.TaskAuth, tui.StatusError, tui.WithError(err))
		return err
	}
	log.Info("authenticated", "login", login)
	rt.sendEvent(tui.TaskAuth, tui.StatusComplete, tui.WithMessage(login))
	return nil
}

// fetchRepos walks the issue pages of every target with at most workers
// repositories in flight. Results keep the order of targets.
func fetchRepos(ctx context.Context, rt *progressRuntime, svc *service.IssueService, targets []string, opts service.FetchOptions, workers int) ([]repoIssues, error) {
	results := make([]repoIssues, len(targets))

	var mu sync.Mutex
	total, pages := 0, 0
	budget := max(opts.MaxPages, 1) * len(targets)
	onPage := func(_, count int) {
		mu.Lock()
		total += count
		pages++
		n, done := total, pages
		mu.Unlock()
		rt.onPage(done, budget, n)
	}

	rt.sendEvent(tui.TaskFetch, tui.StatusRunning)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, target := range targets {
		g.Go(func() error {
			issues, err := svc.FetchAll(gctx, target, opts, onPage)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			results[i] = repoIssues{Repo: repourl.Parse(target).FullName(), Issues: issues}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rt.sendEvent(tui.TaskFetch, tui.StatusError, tui.WithError(err))
		return nil, err
	}

	rt.sendEvent(tui.TaskFetch, tui.StatusComplete, tui.WithCount(total),
		tui.WithMessage(fmt.Sprintf("%d repositories", len(targets))))
	return results, nil
}

func renderIssues(w io.Writer, formatter output.Formatter, results []repoIssues) error {
	if len(results) == 1 {
		return formatter.FormatIssues(results[0].Issues, w)
	}

	if _, ok := formatter.(*output.JSONFormatter); ok {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	_, markdown := formatter.(*output.MarkdownFormatter)

	heading := color.New(color.Bold)
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if markdown {
			fmt.Fprintf(w, "## %s\n\n", r.Repo)
		} else {
			heading.Fprintln(w, r.Repo)
		}
		if err := formatter.FormatIssues(r.Issues, w); err != nil {
			return err
		}
	}
	return nil
}
