// Package digest turns a project's issues into an AI-generated summary.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/issueradar/issueradar/internal/cache"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/retry"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/store"
)

// ErrEmptyCompletion is returned when the model answers without any content.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Stage is a step of digest generation.
type Stage string

const (
	StageFetchingIssues Stage = "fetching-issues"
	StageAskingModel    Stage = "asking-model"
	StageSaving         Stage = "saving"
)

// Stages lists the stages in the order Generate runs them.
var Stages = []Stage{StageFetchingIssues, StageAskingModel, StageSaving}

// Status is the state of a stage.
type Status int

const (
	StatusRunning Status = iota
	StatusComplete
	StatusError
)

// Event reports progress of a stage.
type Event struct {
	Stage    Stage
	Status   Status
	Message  string
	Count    int
	Progress float64 // share of the page budget read, 0 when unknown
	Err      error
}

// IssueFetcher walks the issue pages of a repository.
// *service.IssueService implements it.
type IssueFetcher interface {
	FetchAll(ctx context.Context, repoURL string, opts service.FetchOptions, onPage func(page, count int)) ([]model.Issue, error)
}

// Completer answers a chat conversation. llm.Completer satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error)
}

// Store is the persistence the composer needs. *store.Store implements it.
type Store interface {
	GetProject(ctx context.Context, userID, id string) (*model.Project, error)
	CanCreateDigest(ctx context.Context, userID, projectID string) error
	CreateDigest(ctx context.Context, userID string, d model.Digest) (*model.Digest, error)
}

// PendingStore keeps digests that could not be saved. *cache.Cache implements it.
type PendingStore interface {
	SetPendingDigest(d *cache.PendingDigest) error
	ListPendingDigests() ([]cache.PendingDigest, error)
	DeletePendingDigest(id string) error
}

// Options configures a Composer.
type Options struct {
	// UserID is the acting user; every lookup is scoped to it.
	UserID string
	// Instruction is an optional extra user message appended to the prompt.
	Instruction string
	// MaxPages caps how many issue pages are read.
	MaxPages int
	// State filters the issues summarised.
	State model.IssueState
	// SaveRetry controls retries of the digest write.
	SaveRetry retry.Config
	// Pending receives digests whose write failed. Nil disables the fallback.
	Pending PendingStore
	// Observer receives stage events. It must not block.
	Observer func(Event)
}

// run is one in-flight generation shared by every caller waiting on it.
// Its context is cancelled once the last of those callers gives up.
type run struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Composer generates digests.
type Composer struct {
	fetcher   IssueFetcher
	completer Completer
	store     Store
	opts      Options
	group     singleflight.Group
	now       func() time.Time

	mu   sync.Mutex
	runs map[string]*run
	seq  uint64
}

// NewComposer creates a Composer.
func NewComposer(fetcher IssueFetcher, completer Completer, st Store, opts Options) *Composer {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.State == "" {
		opts.State = model.StateAll
	}
	return &Composer{
		fetcher:   fetcher,
		completer: completer,
		store:     st,
		opts:      opts,
		now:       time.Now,
		runs:      make(map[string]*run),
	}
}

func (c *Composer) emit(e Event) {
	if c.opts.Observer != nil {
		c.opts.Observer(e)
	}
}

func (c *Composer) fail(stage Stage, err error) error {
	c.emit(Event{Stage: stage, Status: StatusError, Err: err})
	return err
}

// Ask forwards raw messages to the model.
func (c *Composer) Ask(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error) {
	return c.completer.Complete(ctx, messages)
}

// Generate fetches the project's issues, asks the model for a summary and stores
// it as the project's new active digest. Concurrent calls for the same project
// share one run.
//
// A caller whose ctx ends stops waiting without affecting the others; the
// shared run is only cancelled when no caller is left.
func (c *Composer) Generate(ctx context.Context, projectID string) (*model.Digest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	project := c.opts.UserID + "/" + projectID
	r := c.join(ctx, project)
	defer c.leave(project, r)

	ch := c.group.DoChan(r.key, func() (any, error) {
		return c.generate(r.ctx, projectID)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug("joined in-flight digest generation", "project", projectID)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Digest), nil
	case <-ctx.Done():
		log.Debug("stopped waiting for digest generation", "project", projectID, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// join registers a caller on the project's current run, starting a new one
// when there is none.
func (c *Composer) join(ctx context.Context, project string) *run {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.runs[project]
	if !ok {
		c.seq++
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r = &run{key: fmt.Sprintf("%s#%d", project, c.seq), ctx: runCtx, cancel: cancel}
		c.runs[project] = r
	}
	r.waiters++
	return r
}

// leave drops a caller from r and cancels r once nobody waits on it. A later
// caller then starts a fresh run under a new key.
func (c *Composer) leave(project string, r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r.waiters--
	if r.waiters > 0 {
		return
	}
	r.cancel()
	if c.runs[project] == r {
		delete(c.runs, project)
	}
}

func (c *Composer) generate(ctx context.Context, projectID string) (*model.Digest, error) {
	project, err := c.store.GetProject(ctx, c.opts.UserID, projectID)
	if err != nil {
		return nil, err
	}
	if err := c.store.CanCreateDigest(ctx, c.opts.UserID, projectID); err != nil {
		return nil, err
	}

	issues, err := c.fetchIssues(ctx, project)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, c.fail(StageAskingModel, err)
	}
	content, err := c.summarise(ctx, issues)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, c.fail(StageSaving, err)
	}
	return c.save(ctx, project.ID, content)
}

func (c *Composer) fetchIssues(ctx context.Context, project *model.Project) ([]model.Issue, error) {
	c.emit(Event{Stage: StageFetchingIssues, Status: StatusRunning, Message: project.RepoURL})

	total := 0
	issues, err := c.fetcher.FetchAll(ctx, project.RepoURL, service.FetchOptions{
		MaxPages: c.opts.MaxPages,
		Query:    model.IssueQuery{Page: 1, State: c.opts.State},
	}, func(page, count int) {
		total += count
		c.emit(Event{
			Stage:    StageFetchingIssues,
			Status:   StatusRunning,
			Message:  fmt.Sprintf("page %d/%d", page, c.opts.MaxPages),
			Count:    total,
			Progress: min(float64(page)/float64(c.opts.MaxPages), 1),
		})
	})
	if err != nil {
		return nil, c.fail(StageFetchingIssues, fmt.Errorf("fetching issues: %w", err))
	}

	c.emit(Event{Stage: StageFetchingIssues, Status: StatusComplete, Count: len(issues)})
	log.Info("fetched issues for digest", "project", project.ID, "count", len(issues))
	return issues, nil
}

func (c *Composer) summarise(ctx context.Context, issues []model.Issue) (string, error) {
	c.emit(Event{Stage: StageAskingModel, Status: StatusRunning})

	messages := BuildMessages(issues, c.opts.Instruction)
	log.Trace("prompt", "messages", len(messages))

	completion, err := c.completer.Complete(ctx, messages)
	if err != nil {
		return "", c.fail(StageAskingModel, fmt.Errorf("asking model: %w", err))
	}
	content, ok := completion.FirstContent()
	if !ok || strings.TrimSpace(content) == "" {
		return "", c.fail(StageAskingModel, ErrEmptyCompletion)
	}

	c.emit(Event{Stage: StageAskingModel, Status: StatusComplete, Message: completion.Model})
	return content, nil
}

func (c *Composer) save(ctx context.Context, projectID, content string) (*model.Digest, error) {
	c.emit(Event{Stage: StageSaving, Status: StatusRunning})

	d := model.Digest{ID: uuid.NewString(), ProjectID: projectID, Content: content}
	saved, err := c.create(ctx, d)
	if err != nil {
		if perr := c.keepPending(d, err); perr != nil {
			err = errors.Join(err, fmt.Errorf("keeping digest locally: %w", perr))
		} else if c.opts.Pending != nil {
			err = fmt.Errorf("digest %s kept locally, run 'issueradar digest flush' to retry: %w", d.ID, err)
		}
		return nil, c.fail(StageSaving, err)
	}

	c.emit(Event{Stage: StageSaving, Status: StatusComplete, Message: saved.ID})
	return saved, nil
}

// create writes d, retrying transient failures. The write is idempotent on d.ID.
func (c *Composer) create(ctx context.Context, d model.Digest) (*model.Digest, error) {
	var saved *model.Digest
	err := retry.Do(ctx, c.opts.SaveRetry, "save digest", func(ctx context.Context) error {
		var err error
		saved, err = c.store.CreateDigest(ctx, c.opts.UserID, d)
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrLimitExceeded) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("saving digest %s: %w", d.ID, err)
	}
	return saved, nil
}

func (c *Composer) keepPending(d model.Digest, cause error) error {
	if c.opts.Pending == nil {
		return nil
	}
	log.Warn("keeping unsaved digest locally", "id", d.ID, "project", d.ProjectID, "error", cause)
	return c.opts.Pending.SetPendingDigest(&cache.PendingDigest{
		ID:        d.ID,
		UserID:    c.opts.UserID,
		ProjectID: d.ProjectID,
		Content:   d.Content,
		LastError: cause.Error(),
		CreatedAt: c.now(),
	})
}

// FlushPending retries every locally kept digest of the acting user. Stored
// digests are removed from the local cache; failures stay pending.
func (c *Composer) FlushPending(ctx context.Context) ([]model.Digest, error) {
	if c.opts.Pending == nil {
		return nil, nil
	}
	pending, err := c.opts.Pending.ListPendingDigests()
	if err != nil {
		return nil, fmt.Errorf("listing pending digests: %w", err)
	}

	saved := []model.Digest{}
	var errs []error
	for _, p := range pending {
		if p.UserID != "" && p.UserID != c.opts.UserID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		d, err := c.create(ctx, model.Digest{ID: p.ID, ProjectID: p.ProjectID, Content: p.Content})
		if err != nil {
			p.LastError = err.Error()
			if serr := c.opts.Pending.SetPendingDigest(&p); serr != nil {
				log.Debug("failed to update pending digest", "id", p.ID, "error", serr)
			}
			errs = append(errs, err)
			continue
		}
		if err := c.opts.Pending.DeletePendingDigest(p.ID); err != nil {
			log.Debug("failed to remove pending digest", "id", p.ID, "error", err)
		}
		saved = append(saved, *d)
	}
	return saved, errors.Join(errs...)
}
