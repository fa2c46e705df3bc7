// Package service provides orchestration between the GitHub API, the rate
// limiter and the caching layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/issueradar/issueradar/internal/cache"
	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/ghclient"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/retry"
)

// ErrUnsupportedProvider is returned for repository URLs that are not hosted on GitHub.
var ErrUnsupportedProvider = errors.New("unsupported repository provider")

// IssueLister lists one page of a repository's issues.
// *ghclient.Client implements it.
type IssueLister interface {
	ListIssues(ctx context.Context, owner, repo string, q model.IssueQuery) ([]model.Issue, int, error)
}

// IssueService fetches issues for repository URLs. All callers share one limiter,
// so concurrent walks are paced together.
type IssueService struct {
	lister  IssueLister
	cache   cache.Cacher
	limiter *rate.Limiter
	retry   retry.Config
	perPage int
}

// Option configures an IssueService.
type Option func(*IssueService)

// WithCache enables caching of issue pages. A nil cache disables caching.
func WithCache(c cache.Cacher) Option {
	return func(s *IssueService) {
		s.cache = c
	}
}

// WithRate paces network requests to r per second with the given burst.
func WithRate(r float64, burst int) Option {
	return func(s *IssueService) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Inf
		if r > 0 {
			limit = rate.Limit(r)
		}
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRetry sets the backoff used for transient failures.
func WithRetry(cfg retry.Config) Option {
	return func(s *IssueService) {
		s.retry = cfg
	}
}

// WithPerPage sets the page size used when a query leaves it unset.
func WithPerPage(n int) Option {
	return func(s *IssueService) {
		s.perPage = min(n, constants.MaxPerPage)
	}
}

// New creates a new IssueService.
func New(lister IssueLister, opts ...Option) *IssueService {
	s := &IssueService{
		lister:  lister,
		limiter: rate.NewLimiter(rate.Limit(constants.DefaultRequestsPerSecond), constants.DefaultBurst),
		retry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		// Avoid the typed-nil trap when a nil *cache.Cache is passed.
		if c, ok := s.cache.(*cache.Cache); ok && c == nil {
			s.cache = nil
		}
	}
	return s
}

// FetchOptions configures a multi-page walk.
type FetchOptions struct {
	// MaxPages caps the number of pages read. Zero reads one page.
	MaxPages int
	// Query selects the first page and the filters.
	Query model.IssueQuery
}

// PageResult is one page of issues.
type PageResult struct {
	Issues    []model.Issue
	NextPage  int
	FromCache bool
	Stale     bool
}

// resolve parses repoURL and checks that the provider is supported.
func resolve(repoURL string) (repourl.Ref, error) {
	ref := repourl.Parse(repoURL)
	if ref.Provider != model.ProviderGitHub {
		return ref, fmt.Errorf("%w: %s (%q)", ErrUnsupportedProvider, ref.Provider, strings.TrimSpace(repoURL))
	}
	return ref, nil
}

// FetchPage lists one page of issues for repoURL. An empty URL yields an empty list.
func (s *IssueService) FetchPage(ctx context.Context, repoURL string, q model.IssueQuery) ([]model.Issue, error) {
	if strings.TrimSpace(repoURL) == "" {
		return []model.Issue{}, nil
	}

	ref, err := resolve(repoURL)
	if err != nil {
		return nil, err
	}

	res, err := s.fetchPage(ctx, ref, q)
	if err != nil {
		return nil, err
	}
	return res.Issues, nil
}

// FetchAll walks pages sequentially starting at opts.Query.Page. It stops at an
// empty page, after opts.MaxPages pages, or when GitHub reports no next page.
// onPage, when set, is called after every page.
func (s *IssueService) FetchAll(ctx context.Context, repoURL string, opts FetchOptions, onPage func(page, count int)) ([]model.Issue, error) {
	if strings.TrimSpace(repoURL) == "" {
		return []model.Issue{}, nil
	}

	ref, err := resolve(repoURL)
	if err != nil {
		return nil, err
	}

	maxPages := opts.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	q := opts.Query.Normalize()
	all := []model.Issue{}

	for i := 0; i < maxPages; i++ {
		res, err := s.fetchPage(ctx, ref, q)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", q.Page, err)
		}
		if onPage != nil {
			onPage(q.Page, len(res.Issues))
		}
		if len(res.Issues) == 0 {
			break
		}
		all = append(all, res.Issues...)
		if res.NextPage == 0 {
			break
		}
		q.Page = res.NextPage
	}

	log.Debug("fetched issues", "repo", ref.FullName(), "count", len(all))
	return all, nil
}

func (s *IssueService) fetchPage(ctx context.Context, ref repourl.Ref, q model.IssueQuery) (*PageResult, error) {
	q = q.Normalize()
	if q.PerPage == 0 {
		q.PerPage = s.perPage
	}

	key := cache.PageKey{
		Repo:    ref.FullName(),
		State:   q.State,
		Page:    q.Page,
		PerPage: q.PerPage,
		Since:   q.Since,
	}

	// Check cache first
	if s.cache != nil {
		if entry, ok := s.cache.GetPage(key); ok {
			log.Trace("issue page cache hit", "repo", key.Repo, "page", key.Page)
			return &PageResult{Issues: entry.Issues, NextPage: entry.NextPage, FromCache: true}, nil
		}
	}

	var (
		issues []model.Issue
		next   int
	)
	err := retry.Do(ctx, s.retry, "list issues", func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var err error
		issues, next, err = s.lister.ListIssues(ctx, ref.User, ref.Repo, q)
		if err != nil && !ghclient.IsRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		// Serve stale data rather than nothing while rate limited
		if ghclient.IsRateLimitError(err) && s.cache != nil {
			if entry, ok := s.cache.GetStalePage(key); ok {
				log.Warn("rate limited, serving cached issues", "repo", key.Repo, "page", key.Page, "cached_at", entry.CachedAt)
				return &PageResult{Issues: entry.Issues, NextPage: entry.NextPage, FromCache: true, Stale: true}, nil
			}
		}
		return nil, err
	}

	if issues == nil {
		issues = []model.Issue{}
	}

	// Cache the result
	if s.cache != nil {
		if err := s.cache.SetPage(key, &cache.PageEntry{Issues: issues, NextPage: next}); err != nil {
			log.Debug("failed to cache issue page", "repo", key.Repo, "page", key.Page, "error", err)
		}
	}

	return &PageResult{Issues: issues, NextPage: next}, nil
}
