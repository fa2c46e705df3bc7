package digest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issueradar/issueradar/internal/cache"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/retry"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/store"
)

type fakeFetcher struct {
	issues   []model.Issue
	err      error
	calls    atomic.Int32
	opts     service.FetchOptions
	block    chan struct{}
	canceled atomic.Bool
}

func (f *fakeFetcher) FetchAll(ctx context.Context, repoURL string, opts service.FetchOptions, onPage func(page, count int)) ([]model.Issue, error) {
	f.calls.Add(1)
	f.opts = opts
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			f.canceled.Store(true)
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if onPage != nil {
		onPage(1, len(f.issues))
	}
	return f.issues, nil
}

type fakeCompleter struct {
	content  string
	err      error
	messages []model.ChatMessage
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	if f.content == "" {
		return &model.Completion{Model: "test"}, nil
	}
	return &model.Completion{
		Model:   "test",
		Choices: []model.Choice{{Message: model.ChatMessage{Role: model.RoleAssistant, Content: f.content}}},
	}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	project   *model.Project
	limitErr  error
	failures  int
	createErr error
	attempts  int
	digests   map[string]model.Digest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		project: &model.Project{ID: "p1", UserID: "u1", RepoURL: "https://github.com/o/r"},
		digests: map[string]model.Digest{},
	}
}

func (s *fakeStore) GetProject(ctx context.Context, userID, id string) (*model.Project, error) {
	if id != s.project.ID || userID != s.project.UserID {
		return nil, store.ErrNotFound
	}
	return s.project, nil
}

func (s *fakeStore) CanCreateDigest(ctx context.Context, userID, projectID string) error {
	return s.limitErr
}

func (s *fakeStore) CreateDigest(ctx context.Context, userID string, d model.Digest) (*model.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return nil, s.createErr
	}
	if existing, ok := s.digests[d.ID]; ok {
		return &existing, nil
	}
	s.digests[d.ID] = d
	return &d, nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestBuildMessages(t *testing.T) {
	t.Parallel()
	issues := []model.Issue{
		{Number: 1, Title: "Crash on start", Body: "stack trace"},
		{Number: 7, Title: "Docs", Body: ""},
	}

	got := BuildMessages(issues, "Group by area", "  ")

	want := []model.ChatMessage{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleAssistant, Content: "#1 Crash on start stack trace"},
		{Role: model.RoleAssistant, Content: "#7 Docs "},
		{Role: model.RoleUser, Content: summaryPrompt},
		{Role: model.RoleUser, Content: "Group by area"},
	}
	assert.Equal(t, want, got)
}

func TestBuildMessagesWithoutIssues(t *testing.T) {
	t.Parallel()
	got := BuildMessages(nil)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleSystem, got[0].Role)
	assert.Equal(t, model.RoleUser, got[1].Role)
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{issues: []model.Issue{{Number: 1, Title: "bug", Body: "broken"}}}
	completer := &fakeCompleter{content: "All is broken."}
	st := newFakeStore()

	var events []Event
	c := NewComposer(fetcher, completer, st, Options{
		UserID:      "u1",
		Instruction: "Use bullet points",
		MaxPages:    3,
		State:       model.StateOpen,
		SaveRetry:   fastRetry(),
		Observer:    func(e Event) { events = append(events, e) },
	})

	d, err := c.Generate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "All is broken.", d.Content)
	assert.Equal(t, "p1", d.ProjectID)
	assert.NotEmpty(t, d.ID)

	assert.Equal(t, 3, fetcher.opts.MaxPages)
	assert.Equal(t, model.StateOpen, fetcher.opts.Query.State)
	require.Len(t, completer.messages, 4)
	assert.Equal(t, "Use bullet points", completer.messages[3].Content)

	var completed []Stage
	for _, e := range events {
		if e.Status == StatusComplete {
			completed = append(completed, e.Stage)
		}
	}
	assert.Equal(t, Stages, completed)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*fakeFetcher, *fakeCompleter, *fakeStore)
		project string
		wantErr error
	}{
		{
			name:    "unknown project",
			project: "missing",
			wantErr: store.ErrNotFound,
		},
		{
			name: "digest limit reached",
			setup: func(_ *fakeFetcher, _ *fakeCompleter, s *fakeStore) {
				s.limitErr = store.ErrLimitExceeded
			},
			project: "p1",
			wantErr: store.ErrLimitExceeded,
		},
		{
			name: "fetch fails",
			setup: func(f *fakeFetcher, _ *fakeCompleter, _ *fakeStore) {
				f.err = service.ErrUnsupportedProvider
			},
			project: "p1",
			wantErr: service.ErrUnsupportedProvider,
		},
		{
			name:    "empty completion",
			project: "p1",
			wantErr: ErrEmptyCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &fakeFetcher{}
			completer := &fakeCompleter{}
			st := newFakeStore()
			if tt.setup != nil {
				tt.setup(fetcher, completer, st)
			}
			c := NewComposer(fetcher, completer, st, Options{UserID: "u1", SaveRetry: fastRetry()})

			_, err := c.Generate(context.Background(), tt.project)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, st.digests)
		})
	}
}

func TestGenerateRetriesSave(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	st.failures = 2
	st.createErr = errors.New("database is locked")

	c := NewComposer(&fakeFetcher{}, &fakeCompleter{content: "summary"}, st, Options{UserID: "u1", SaveRetry: fastRetry()})

	d, err := c.Generate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.attempts)
	assert.Len(t, st.digests, 1)
	assert.Equal(t, d.ID, st.digests[d.ID].ID)
}

func TestGenerateKeepsUnsavedDigest(t *testing.T) {
	t.Parallel()
	pending, err := cache.NewCacheAt(t.TempDir(), time.Minute)
	require.NoError(t, err)

	st := newFakeStore()
	st.failures = 10
	st.createErr = errors.New("disk I/O error")

	c := NewComposer(&fakeFetcher{}, &fakeCompleter{content: "precious text"}, st, Options{
		UserID:    "u1",
		SaveRetry: fastRetry(),
		Pending:   pending,
	})

	_, genErr := c.Generate(context.Background(), "p1")
	require.Error(t, genErr)
	assert.Contains(t, genErr.Error(), "disk I/O error")
	assert.Equal(t, 3, st.attempts)

	kept, err := pending.ListPendingDigests()
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "precious text", kept[0].Content)
	assert.Equal(t, "p1", kept[0].ProjectID)
	assert.Contains(t, genErr.Error(), kept[0].ID)

	// The database recovers; flushing stores the kept digest under the same id.
	st.failures = 0
	saved, err := c.FlushPending(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, kept[0].ID, saved[0].ID)

	left, err := pending.ListPendingDigests()
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	completer := &fakeCompleter{content: "unused"}
	c := NewComposer(fetcher, completer, newFakeStore(), Options{UserID: "u1", SaveRetry: fastRetry()})

	_, err := c.Generate(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, completer.messages, "the model must not be asked after cancellation")
}

func TestGenerateCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{block: make(chan struct{})}
	st := newFakeStore()
	c := NewComposer(fetcher, &fakeCompleter{content: "shared"}, st, Options{UserID: "u1", SaveRetry: fastRetry()})

	const callers = 4
	results := make([]*model.Digest, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.Generate(context.Background(), "p1")
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}

	// Let every caller join the in-flight run before it completes.
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Len(t, st.digests, 1)
	for _, d := range results {
		require.NotNil(t, d)
		assert.Equal(t, results[0].ID, d.ID)
	}
}

func TestGenerateOutlivesCancelledCaller(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{block: make(chan struct{})}
	st := newFakeStore()
	c := NewComposer(fetcher, &fakeCompleter{content: "kept"}, st, Options{UserID: "u1", SaveRetry: fastRetry()})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Generate(ctx, "p1")
		first <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan *model.Digest, 1)
	go func() {
		d, err := c.Generate(context.Background(), "p1")
		assert.NoError(t, err)
		second <- d
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(fetcher.block)
	d := <-second
	require.NotNil(t, d)
	assert.Equal(t, "kept", d.Content)
	assert.False(t, fetcher.canceled.Load(), "the shared run must keep going while a caller waits")
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Len(t, st.digests, 1)
}

func TestGenerateCancelsAbandonedRun(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{block: make(chan struct{})}
	completer := &fakeCompleter{content: "unused"}
	st := newFakeStore()
	c := NewComposer(fetcher, completer, st, Options{UserID: "u1", SaveRetry: fastRetry()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(ctx, "p1")
		done <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.Eventually(t, fetcher.canceled.Load, time.Second, time.Millisecond)
	assert.Empty(t, st.digests)

	// A later caller starts over instead of joining the cancelled run.
	close(fetcher.block)
	completer.content = "fresh"
	d, err := c.Generate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", d.Content)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestGenerateReportsFetchProgress(t *testing.T) {
	t.Parallel()
	var events []Event
	fetcher := &fakeFetcher{issues: []model.Issue{{Number: 1, Title: "a"}}}
	c := NewComposer(fetcher, &fakeCompleter{content: "ok"}, newFakeStore(), Options{
		UserID:    "u1",
		MaxPages:  4,
		SaveRetry: fastRetry(),
		Observer:  func(e Event) { events = append(events, e) },
	})

	_, err := c.Generate(context.Background(), "p1")
	require.NoError(t, err)

	var progress []float64
	for _, e := range events {
		if e.Stage == StageFetchingIssues && e.Progress > 0 {
			progress = append(progress, e.Progress)
			assert.Equal(t, "page 1/4", e.Message)
		}
	}
	assert.Equal(t, []float64{0.25}, progress)
}

func TestAsk(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{content: "pong"}
	c := NewComposer(&fakeFetcher{}, completer, newFakeStore(), Options{UserID: "u1"})

	got, err := c.Ask(context.Background(), []model.ChatMessage{{Role: model.RoleUser, Content: "ping"}})
	require.NoError(t, err)
	content, ok := got.FirstContent()
	assert.True(t, ok)
	assert.Equal(t, "pong", content)
}
