package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/ghclient"
	"github.com/issueradar/issueradar/internal/llm"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/repourl"
	"github.com/issueradar/issueradar/internal/service"
	"github.com/issueradar/issueradar/internal/store"
)

// errBadRequest marks malformed or missing request parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, repourl.ErrUnsupportedURL),
		errors.Is(err, service.ErrUnsupportedProvider),
		errors.Is(err, llm.ErrNoMessages),
		errors.Is(err, llm.ErrInvalidMessages):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), ghclient.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrLimitExceeded):
		return http.StatusConflict
	case ghclient.IsRateLimitError(err):
		return http.StatusTooManyRequests
	case errors.Is(err, digest.ErrEmptyCompletion):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error": fmt.Sprintf("method %s not allowed", r.Method),
		})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// requireQuery returns a non-empty query parameter.
func requireQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", badRequest("missing %s", name)
	}
	return v, nil
}
