package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/store"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	RepoURL     string `json:"repoUrl"`
	Subdomain   string `json:"subdomain"`
}

type updateProjectRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	RepoURL     *string `json:"repoUrl"`
	Subdomain   *string `json:"subdomain"`
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("projectId")); id != "" {
		p, err := s.store.GetProject(r.Context(), s.userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	projects, err := s.store.ListProjects(r.Context(), s.userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ref, err := repourl.Require(req.RepoURL)
	if err != nil {
		writeError(w, err)
		return
	}

	p := model.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		RepoURL:     strings.TrimSpace(req.RepoURL),
		Subdomain:   req.Subdomain,
	}
	if p.Name == "" {
		p.Name = repourl.DefaultProjectName(ref)
	}
	if repourl.SanitizeSubdomain(p.Subdomain) == "" {
		p.Subdomain = repourl.DefaultSubdomain(ref)
	}

	created, err := s.store.CreateProject(r.Context(), s.userID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"projectId": created.ID})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, badRequest("missing id"))
		return
	}
	if req.RepoURL != nil {
		if _, err := repourl.Require(*req.RepoURL); err != nil {
			writeError(w, err)
			return
		}
	}

	p, err := s.store.UpdateProject(r.Context(), s.userID, store.ProjectUpdate{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		RepoURL:     req.RepoURL,
		Subdomain:   req.Subdomain,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeleteProject(r.Context(), s.userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"projectId": id})
}

type postRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Slug        string `json:"slug"`
	Published   bool   `json:"published"`
}

func (req postRequest) post() model.Post {
	return model.Post{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Slug:        req.Slug,
		Published:   req.Published,
	}
}

type postsResponse struct {
	Posts   []model.Post   `json:"posts"`
	Project *model.Project `json:"project"`
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("postId")); id != "" {
		p, err := s.store.GetPost(r.Context(), s.userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, badRequest("missing postId or projectId"))
		return
	}
	published := true
	if v := q.Get("published"); v != "" {
		published, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, badRequest("invalid published %q", v))
			return
		}
	}

	project, err := s.store.GetProject(r.Context(), s.userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	posts, err := s.store.ListPosts(r.Context(), s.userID, projectID, published)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts, Project: project})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.store.CreatePost(r.Context(), s.userID, projectID, req.post())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"postId": p.ID})
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, badRequest("missing id"))
		return
	}

	p, err := s.store.UpdatePost(r.Context(), s.userID, req.post())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeletePost(r.Context(), s.userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"postId": id})
}

type digestResponse struct {
	Digest       *model.Digest  `json:"digest"`
	TotalDigests int            `json:"totalDigests"`
	Project      *model.Project `json:"project"`
}

type updateDigestRequest struct {
	ID        string  `json:"id"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("digestId")); id != "" {
		d, err := s.store.GetDigest(r.Context(), s.userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, badRequest("missing digestId or projectId"))
		return
	}
	project, err := s.store.GetProject(r.Context(), s.userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	d, total, err := s.store.LatestDigest(r.Context(), s.userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, digestResponse{Digest: d, TotalDigests: total, Project: project})
}

func (s *Server) handleCreateDigest(w http.ResponseWriter, r *http.Request) {
	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, badRequest("missing content"))
		return
	}

	d, err := s.store.CreateDigest(r.Context(), s.userID, model.Digest{ProjectID: projectID, Content: req.Content})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"digestId": d.ID})
}

func (s *Server) handleUpdateDigest(w http.ResponseWriter, r *http.Request) {
	var req updateDigestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, badRequest("missing id"))
		return
	}

	d, err := s.store.UpdateDigest(r.Context(), s.userID, store.DigestUpdate{
		ID:        req.ID,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDigest(w http.ResponseWriter, r *http.Request) {
	id, err := requireQuery(r, "digestId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeleteDigest(r.Context(), s.userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"digestId": id})
}

func (s *Server) handleGenerateDigest(w http.ResponseWriter, r *http.Request) {
	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.digests.Generate(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type issuesResponse struct {
	Issues []model.Issue `json:"issues"`
	Page   int           `json:"page"`
	State  string        `json:"state"`
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeError(w, err)
		return
	}

	page := 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, badRequest("invalid page %q", v))
			return
		}
	}
	state, err := model.ParseIssueState(q.Get("state"))
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	project, err := s.store.GetProject(r.Context(), s.userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.issues.FetchPage(r.Context(), project.RepoURL, model.IssueQuery{Page: page, State: state})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuesResponse{Issues: issues, Page: page, State: string(state)})
}

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var messages []model.ChatMessage
	if err := decodeJSON(w, r, &messages); err != nil {
		writeError(w, err)
		return
	}
	if len(messages) == 0 {
		writeError(w, badRequest("no messages"))
		return
	}

	completion, err := s.digests.Ask(r.Context(), messages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}
