package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/ghclient"
	"github.com/issueradar/issueradar/internal/llm"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/store"
)

const testUser = "u1"

type fakeIssues struct {
	mu     sync.Mutex
	issues []model.Issue
	err    error
	repo   string
	query  model.IssueQuery
}

func (f *fakeIssues) FetchPage(ctx context.Context, repoURL string, q model.IssueQuery) ([]model.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repo = repoURL
	f.query = q
	return f.issues, f.err
}

type fakeDigests struct {
	mu       sync.Mutex
	st       *store.Store
	err      error
	messages []model.ChatMessage
}

func (f *fakeDigests) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeDigests) Generate(ctx context.Context, projectID string) (*model.Digest, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.st.CreateDigest(ctx, testUser, model.Digest{ProjectID: projectID, Content: "generated"})
}

func (f *fakeDigests) Ask(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &model.Completion{Model: "test", Choices: []model.Choice{{Message: model.ChatMessage{Role: model.RoleAssistant, Content: "ok"}}}}, nil
}

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	st      *store.Store
	issues  *fakeIssues
	digests *fakeDigests
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.EnsureUser(context.Background(), model.User{ID: testUser, Name: "tester"})
	require.NoError(t, err)

	h := &harness{t: t, st: st, issues: &fakeIssues{}, digests: &fakeDigests{st: st}}
	h.srv = httptest.NewServer(New(st, h.issues, h.digests, testUser).Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(method, path string, body any) (int, http.Header, []byte) {
	h.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.srv.URL+path, r)
	require.NoError(h.t, err)
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, resp.Header, data
}

func (h *harness) decode(data []byte, v any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(data, v), string(data))
}

func (h *harness) createProject(repoURL string) string {
	h.t.Helper()
	status, _, body := h.do(http.MethodPost, "/api/project", map[string]string{"repoUrl": repoURL})
	require.Equal(h.t, http.StatusCreated, status, string(body))
	var out struct {
		ProjectID string `json:"projectId"`
	}
	h.decode(body, &out)
	return out.ProjectID
}

func TestProjectEndpoints(t *testing.T) {
	h := newHarness(t)

	id := h.createProject("https://github.com/vercel/next.js")

	status, _, body := h.do(http.MethodGet, "/api/project?projectId="+id, nil)
	require.Equal(t, http.StatusOK, status)
	var p model.Project
	h.decode(body, &p)
	assert.Equal(t, "vercel/next.js", p.Name)
	assert.Equal(t, "nextjs", p.Subdomain)

	second := h.createProject("git@github.com:octocat/hello-world.git")
	status, _, body = h.do(http.MethodGet, "/api/project", nil)
	require.Equal(t, http.StatusOK, status)
	var list []model.Project
	h.decode(body, &list)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)

	status, _, body = h.do(http.MethodPut, "/api/project", map[string]any{"id": id, "name": "Next", "subdomain": "!!"})
	require.Equal(t, http.StatusOK, status, string(body))
	h.decode(body, &p)
	assert.Equal(t, "Next", p.Name)
	assert.Equal(t, "nextjs", p.Subdomain)

	status, _, _ = h.do(http.MethodPut, "/api/project", map[string]any{"id": "missing", "name": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = h.do(http.MethodDelete, "/api/project?projectId="+id, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = h.do(http.MethodGet, "/api/project?projectId="+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateProjectErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"unknown url", map[string]string{"repoUrl": "https://example.com/a/b"}, http.StatusBadRequest},
		{"missing url", map[string]string{}, http.StatusBadRequest},
		{"malformed json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, body := h.do(http.MethodPost, "/api/project", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			var out map[string]string
			h.decode(body, &out)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestCreateProjectLimit(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < model.LimitFor(model.UserRoleUser).MaxProjects; i++ {
		h.createProject(fmt.Sprintf("https://github.com/o/r%d", i))
	}

	status, _, body := h.do(http.MethodPost, "/api/project", map[string]string{"repoUrl": "https://github.com/o/extra"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "limit exceeded")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)

	status, header, body := h.do(http.MethodPatch, "/api/project", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "GET, POST, PUT, DELETE", header.Get("Allow"))
	assert.Contains(t, string(body), `"error"`)

	status, header, _ = h.do(http.MethodGet, "/api/digest/generate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "POST", header.Get("Allow"))
}

func TestPostEndpoints(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject("https://github.com/o/r")

	status, _, body := h.do(http.MethodPost, "/api/post?projectId="+projectID, map[string]any{"title": "Hello", "published": true})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		PostID string `json:"postId"`
	}
	h.decode(body, &created)

	status, _, _ = h.do(http.MethodPost, "/api/post?projectId="+projectID, map[string]any{"title": "Draft"})
	require.Equal(t, http.StatusCreated, status)

	status, _, body = h.do(http.MethodGet, "/api/post?projectId="+projectID, nil)
	require.Equal(t, http.StatusOK, status)
	var listed postsResponse
	h.decode(body, &listed)
	require.Len(t, listed.Posts, 1)
	assert.Equal(t, "Hello", listed.Posts[0].Title)
	assert.Equal(t, projectID, listed.Project.ID)

	status, _, body = h.do(http.MethodGet, "/api/post?projectId="+projectID+"&published=false", nil)
	require.Equal(t, http.StatusOK, status)
	h.decode(body, &listed)
	require.Len(t, listed.Posts, 1)
	assert.Equal(t, "Draft", listed.Posts[0].Title)

	status, _, body = h.do(http.MethodPut, "/api/post", map[string]any{"id": created.PostID, "title": "Hello again", "slug": "hello"})
	require.Equal(t, http.StatusOK, status, string(body))
	var post model.Post
	h.decode(body, &post)
	assert.Equal(t, "hello", post.Slug)
	assert.False(t, post.Published)

	status, _, _ = h.do(http.MethodGet, "/api/post?published=maybe&projectId="+projectID, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = h.do(http.MethodGet, "/api/post", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = h.do(http.MethodDelete, "/api/post?postId="+created.PostID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = h.do(http.MethodGet, "/api/post?postId="+created.PostID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDigestEndpoints(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject("https://github.com/o/r")

	status, _, body := h.do(http.MethodGet, "/api/digest?projectId="+projectID, nil)
	require.Equal(t, http.StatusOK, status)
	var got digestResponse
	h.decode(body, &got)
	assert.Nil(t, got.Digest)
	assert.Zero(t, got.TotalDigests)

	status, _, body = h.do(http.MethodPost, "/api/digest?projectId="+projectID, map[string]string{"content": "manual"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _, body = h.do(http.MethodPost, "/api/digest/generate?projectId="+projectID, nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	var generated model.Digest
	h.decode(body, &generated)
	assert.Equal(t, "generated", generated.Content)

	status, _, body = h.do(http.MethodGet, "/api/digest?projectId="+projectID, nil)
	require.Equal(t, http.StatusOK, status)
	h.decode(body, &got)
	require.NotNil(t, got.Digest)
	assert.Equal(t, generated.ID, got.Digest.ID, "the newest digest is active")
	assert.Equal(t, 2, got.TotalDigests)
	assert.Equal(t, projectID, got.Project.ID)

	status, _, body = h.do(http.MethodPut, "/api/digest", map[string]any{"id": generated.ID, "published": true})
	require.Equal(t, http.StatusOK, status, string(body))
	var updated model.Digest
	h.decode(body, &updated)
	assert.True(t, updated.Published)
	assert.Equal(t, "generated", updated.Content)

	status, _, _ = h.do(http.MethodDelete, "/api/digest?digestId="+generated.ID, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = h.do(http.MethodGet, "/api/digest?digestId="+generated.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = h.do(http.MethodPost, "/api/digest?projectId="+projectID, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateDigestErrors(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject("https://github.com/o/r")

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"limit", store.ErrLimitExceeded, http.StatusConflict},
		{"empty completion", digest.ErrEmptyCompletion, http.StatusBadGateway},
		{"rate limited", ghclient.ErrRateLimited, http.StatusTooManyRequests},
		{"unsupported provider", service.ErrUnsupportedProvider, http.StatusBadRequest},
		{"missing api key", llm.ErrMissingAPIKey, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.digests.setErr(tt.err)
			status, _, _ := h.do(http.MethodPost, "/api/digest/generate?projectId="+projectID, nil)
			assert.Equal(t, tt.wantStatus, status)
		})
	}

	h.digests.setErr(nil)
	status, _, _ := h.do(http.MethodPost, "/api/digest/generate", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIssuesEndpoint(t *testing.T) {
	h := newHarness(t)
	projectID := h.createProject("https://github.com/o/r")
	h.issues.mu.Lock()
	h.issues.issues = []model.Issue{{Number: 1, Title: "bug"}}
	h.issues.mu.Unlock()

	status, _, body := h.do(http.MethodGet, "/api/issues?projectId="+projectID+"&page=2&state=open", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var got issuesResponse
	h.decode(body, &got)
	require.Len(t, got.Issues, 1)
	h.issues.mu.Lock()
	assert.Equal(t, "https://github.com/o/r", h.issues.repo)
	assert.Equal(t, model.IssueQuery{Page: 2, State: model.StateOpen}, h.issues.query)
	h.issues.mu.Unlock()

	status, _, _ = h.do(http.MethodGet, "/api/issues?projectId="+projectID+"&page=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = h.do(http.MethodGet, "/api/issues?projectId="+projectID+"&state=stale", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = h.do(http.MethodGet, "/api/issues?projectId=missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAnalyseEndpoint(t *testing.T) {
	h := newHarness(t)

	msgs := []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}}
	status, _, body := h.do(http.MethodPost, "/api/analyse", msgs)
	require.Equal(t, http.StatusOK, status, string(body))
	var c model.Completion
	h.decode(body, &c)
	content, ok := c.FirstContent()
	assert.True(t, ok)
	assert.Equal(t, "ok", content)
	h.digests.mu.Lock()
	assert.Equal(t, msgs, h.digests.messages)
	h.digests.mu.Unlock()

	status, _, _ = h.do(http.MethodPost, "/api/analyse", []model.ChatMessage{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, _, body := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := New(st, &fakeIssues{}, &fakeDigests{st: st}, testUser)
	require.NoError(t, s.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}

func TestServeReturnsListenerFailure(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s := New(st, &fakeIssues{}, &fakeDigests{st: st}, testUser)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	require.NoError(t, s.ln.Close())

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serving")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the listener failed")
	}
}
