// Package repourl classifies Git hosting URLs into a user, a repository and a provider.
//
// Parsing is deliberately lenient: HTTPS and SSH forms are accepted and the host is
// detected by substring search. Anything that is not recognised yields a Ref with
// provider UNKNOWN and empty user and repo; Parse never returns an error.
package repourl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
)

// maxSegments is the deepest path accepted, e.g. github.com/user/repo.
const maxSegments = 3

// ErrUnsupportedURL is returned by Require when the URL is not a GitHub or GitLab repository.
var ErrUnsupportedURL = errors.New("currently accepts only GitHub or GitLab repo URL")

var hosts = []struct {
	name     string
	provider model.Provider
}{
	{"github.com", model.ProviderGitHub},
	{"gitlab.com", model.ProviderGitLab},
}

// Ref is the parsed form of a repository URL.
type Ref struct {
	User     string         `json:"user"`
	Repo     string         `json:"repo"`
	Provider model.Provider `json:"provider"`
}

// Unknown is the result for any input that cannot be classified.
var Unknown = Ref{Provider: model.ProviderUnknown}

// Valid reports whether the reference points at a known provider.
func (r Ref) Valid() bool {
	return r.Provider != model.ProviderUnknown && r.User != "" && r.Repo != ""
}

// FullName returns "user/repo".
func (r Ref) FullName() string {
	if r.User == "" || r.Repo == "" {
		return ""
	}
	return r.User + "/" + r.Repo
}

func (r Ref) String() string {
	if !r.Valid() {
		return string(model.ProviderUnknown)
	}
	return fmt.Sprintf("%s:%s", r.Provider, r.FullName())
}

// Parse normalises input and extracts the user, repository and provider.
func Parse(input string) Ref {
	link := strings.TrimSpace(input)

	cleaned := strings.TrimPrefix(link, "https://")
	cleaned = strings.TrimSuffix(cleaned, "/")
	cleaned = strings.TrimSuffix(cleaned, ".git")
	if cleaned == "" {
		return Unknown
	}

	if len(strings.Split(cleaned, "/")) > maxSegments {
		return Unknown
	}

	for _, h := range hosts {
		if !strings.Contains(cleaned, h.name) {
			continue
		}

		path := strings.TrimPrefix(cleaned, "git@"+h.name+":")
		parts := strings.Split(path, "/")
		if len(parts) < 2 {
			return Unknown
		}

		repo := parts[len(parts)-1]
		user := parts[len(parts)-2]
		if repo == "" || user == "" || strings.Contains(user, h.name) {
			return Unknown
		}

		return Ref{User: user, Repo: repo, Provider: h.provider}
	}

	return Unknown
}

// Require is Parse for callers that cannot continue with an unknown provider.
func Require(input string) (Ref, error) {
	ref := Parse(input)
	if !ref.Valid() {
		return ref, fmt.Errorf("%w: %q", ErrUnsupportedURL, strings.TrimSpace(input))
	}
	return ref, nil
}

// DefaultProjectName is the name given to a project created from ref.
func DefaultProjectName(ref Ref) string {
	return ref.FullName()
}

// DefaultSubdomain is the subdomain given to a project created from ref.
func DefaultSubdomain(ref Ref) string {
	return SanitizeSubdomain(ref.Repo)
}

var subdomainDisallowed = regexp.MustCompile(`[^a-zA-Z0-9/-]+`)

// SanitizeSubdomain strips every character that is not alphanumeric, '/' or '-'.
func SanitizeSubdomain(s string) string {
	return subdomainDisallowed.ReplaceAllString(s, "")
}
