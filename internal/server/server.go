// Package server exposes projects, posts, digests and issues as a JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/store"
)

// IssueFetcher lists one page of a repository's issues.
// *service.IssueService implements it.
type IssueFetcher interface {
	FetchPage(ctx context.Context, repoURL string, q model.IssueQuery) ([]model.Issue, error)
}

// DigestGenerator produces digests and answers raw chat requests.
// *digest.Composer implements it.
type DigestGenerator interface {
	Generate(ctx context.Context, projectID string) (*model.Digest, error)
	Ask(ctx context.Context, messages []model.ChatMessage) (*model.Completion, error)
}

// Server serves the JSON API for a single local user.
type Server struct {
	store   *store.Store
	issues  IssueFetcher
	digests DigestGenerator
	userID  string
	httpSrv *http.Server
	ln      net.Listener
	addr    string
}

// New creates a server acting as userID.
func New(st *store.Store, issues IssueFetcher, digests DigestGenerator, userID string) *Server {
	s := &Server{
		store:   st,
		issues:  issues,
		digests: digests,
		userID:  userID,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/project", s.handleGetProject)
	mux.HandleFunc("POST /api/project", s.handleCreateProject)
	mux.HandleFunc("PUT /api/project", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/project", s.handleDeleteProject)
	mux.HandleFunc("/api/project", methodNotAllowed("GET, POST, PUT, DELETE"))

	mux.HandleFunc("GET /api/post", s.handleGetPost)
	mux.HandleFunc("POST /api/post", s.handleCreatePost)
	mux.HandleFunc("PUT /api/post", s.handleUpdatePost)
	mux.HandleFunc("DELETE /api/post", s.handleDeletePost)
	mux.HandleFunc("/api/post", methodNotAllowed("GET, POST, PUT, DELETE"))

	mux.HandleFunc("GET /api/digest", s.handleGetDigest)
	mux.HandleFunc("POST /api/digest", s.handleCreateDigest)
	mux.HandleFunc("PUT /api/digest", s.handleUpdateDigest)
	mux.HandleFunc("DELETE /api/digest", s.handleDeleteDigest)
	mux.HandleFunc("/api/digest", methodNotAllowed("GET, POST, PUT, DELETE"))

	mux.HandleFunc("POST /api/digest/generate", s.handleGenerateDigest)
	mux.HandleFunc("/api/digest/generate", methodNotAllowed("POST"))

	mux.HandleFunc("GET /api/issues", s.handleIssues)
	mux.HandleFunc("/api/issues", methodNotAllowed("GET"))

	mux.HandleFunc("POST /api/analyse", s.handleAnalyse)
	mux.HandleFunc("/api/analyse", methodNotAllowed("POST"))

	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Handler:           logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Logger().Handler(), slog.LevelError),
	}
	return s
}

// Handler returns the root handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Listen binds addr. Call Serve to start handling requests.
func (s *Server) Listen(addr string) error {
	if addr == "" {
		addr = constants.DefaultServerAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	return nil
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("server is not listening")
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		errCh <- s.httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("api server listening", "addr", s.addr)
	if err := s.httpSrv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// Release the shutdown goroutine before reporting the serve error.
		stop()
		<-errCh
		return fmt.Errorf("serving: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info("api server stopped")
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
