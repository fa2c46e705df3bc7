package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/cache"
	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/ghclient"
	"github.com/issueradar/issueradar/internal/llm"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/output"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/store"
)

// app bundles the configuration, the database and the acting user.
type app struct {
	cfg   *config.Config
	store *store.Store
	user  *model.User
}

// openApp loads the config, opens the database and registers the local user.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.GetStorePath())
	if err != nil {
		return nil, err
	}

	us := cfg.GetUserSettings()
	user, err := st.EnsureUser(ctx, model.User{ID: us.ID, Name: us.Name, Email: us.Email, Role: us.Role})
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Debug("opened store", "path", cfg.GetStorePath(), "user", user.ID, "role", user.Role)

	return &app{cfg: cfg, store: st, user: user}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Debug("failed to close store", "error", err)
	}
}

// formatter returns the formatter for -o, falling back to default_format.
func (a *app) formatter(opts *Options) (output.Formatter, error) {
	return formatterFor(opts, a.cfg)
}

func formatterFor(opts *Options, cfg *config.Config) (output.Formatter, error) {
	name := opts.Format
	if name == "" && cfg != nil {
		name = cfg.DefaultFormat
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

// services wires the GitHub client, the page cache and the issue service.
type services struct {
	client *ghclient.Client
	cache  *cache.Cache // nil when the cache directory is unusable
	issues *service.IssueService
}

func (a *app) newServices(ctx context.Context) (*services, error) {
	fs := a.cfg.GetFetchSettings()

	client, err := ghclient.NewClient(ctx, a.cfg.GetGitHubToken())
	if err != nil {
		return nil, err
	}

	svcOpts := []service.Option{
		service.WithRate(fs.Rate, fs.Burst),
		service.WithRetry(fs.Retry),
		service.WithPerPage(fs.PerPage),
	}
	c, err := cache.NewCache(fs.CacheTTL)
	if err != nil {
		log.Warn("failed to initialize cache", "error", err)
	} else {
		svcOpts = append(svcOpts, service.WithCache(c))
	}

	return &services{
		client: client,
		cache:  c,
		issues: service.New(client, svcOpts...),
	}, nil
}

// newCompleter creates the configured model backend. The returned func releases it.
func newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, func(), error) {
	s := cfg.GetLLMSettings()
	completer, err := llm.New(ctx, llm.Options{
		Provider:    s.Provider,
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		APIKey:      cfg.GetLLMAPIKey(),
	})
	if err != nil {
		return nil, nil, err
	}

	release := func() {}
	if closer, ok := completer.(io.Closer); ok {
		release = func() {
			if err := closer.Close(); err != nil {
				log.Debug("failed to close model client", "error", err)
			}
		}
	}
	return completer, release, nil
}

// digestOptions returns composer options from the config. pending may be nil,
// in which case digests that cannot be saved are not kept.
func (a *app) digestOptions(pending *cache.Cache, observer func(digest.Event)) digest.Options {
	ds := a.cfg.GetDigestSettings()
	opts := digest.Options{
		UserID:      a.user.ID,
		Instruction: ds.Instruction,
		MaxPages:    ds.MaxPages,
		State:       a.cfg.GetFetchSettings().State,
		SaveRetry:   ds.SaveRetry,
		Observer:    observer,
	}
	if pending != nil {
		opts.Pending = pending
	}
	return opts
}

// errAmbiguousID is returned when an id prefix matches more than one record.
var errAmbiguousID = errors.New("ambiguous id")

// matchPrefix returns the single item whose id starts with prefix.
func matchPrefix[T any](kind, prefix string, items []T, id func(T) string) (T, error) {
	var zero T
	var matches []T
	for _, item := range items {
		if id(item) == prefix {
			return item, nil
		}
		if strings.HasPrefix(id(item), prefix) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%w: no %s matches %q", store.ErrNotFound, kind, prefix)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%w: %q matches %d %ss", errAmbiguousID, prefix, len(matches), kind)
	}
}

// resolveProject finds a project by id, id prefix or repository URL.
func (a *app) resolveProject(ctx context.Context, arg string) (*model.Project, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("project id or repository URL required")
	}
	p, err := a.store.GetProject(ctx, a.user.ID, arg)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	projects, err := a.store.ListProjects(ctx, a.user.ID)
	if err != nil {
		return nil, err
	}
	if ref := repourl.Parse(arg); ref.Valid() {
		for i := range projects {
			if repourl.Parse(projects[i].RepoURL) == ref {
				return &projects[i], nil
			}
		}
		return nil, fmt.Errorf("%w: no project tracks %s", store.ErrNotFound, ref.FullName())
	}

	match, err := matchPrefix("project", arg, projects, func(p model.Project) string { return p.ID })
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// resolveDigest finds a digest by id or id prefix across all projects.
func (a *app) resolveDigest(ctx context.Context, arg string) (*model.Digest, error) {
	d, err := a.store.GetDigest(ctx, a.user.ID, arg)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return d, err
	}

	projects, err := a.store.ListProjects(ctx, a.user.ID)
	if err != nil {
		return nil, err
	}
	var all []model.Digest
	for _, p := range projects {
		digests, err := a.store.ListDigests(ctx, a.user.ID, p.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, digests...)
	}
	match, err := matchPrefix("digest", arg, all, func(d model.Digest) string { return d.ID })
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// resolvePost finds a post by id, slug or id prefix, published or not.
func (a *app) resolvePost(ctx context.Context, arg string) (*model.Post, error) {
	p, err := a.store.GetPost(ctx, a.user.ID, arg)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return p, err
	}

	projects, err := a.store.ListProjects(ctx, a.user.ID)
	if err != nil {
		return nil, err
	}
	var all []model.Post
	for _, project := range projects {
		for _, published := range []bool{true, false} {
			posts, err := a.store.ListPosts(ctx, a.user.ID, project.ID, published)
			if err != nil {
				return nil, err
			}
			all = append(all, posts...)
		}
	}
	for i := range all {
		if all[i].Slug == arg {
			return &all[i], nil
		}
	}
	match, err := matchPrefix("post", arg, all, func(p model.Post) string { return p.ID })
	if err != nil {
		return nil, err
	}
	return &match, nil
}
