// Package model contains domain types for the issueradar application.
// These types are independent of any external GitHub or LLM library.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies the Git hosting service behind a repository URL.
type Provider string

const (
	ProviderGitHub  Provider = "GITHUB"
	ProviderGitLab  Provider = "GITLAB"
	ProviderUnknown Provider = "UNKNOWN"
)

// IssueState filters issues by state when listing them.
type IssueState string

const (
	StateOpen   IssueState = "open"
	StateClosed IssueState = "closed"
	StateAll    IssueState = "all"
)

// ParseIssueState validates a user-supplied state. Empty input means all.
func ParseIssueState(s string) (IssueState, error) {
	switch IssueState(strings.ToLower(s)) {
	case "", StateAll:
		return StateAll, nil
	case StateOpen:
		return StateOpen, nil
	case StateClosed:
		return StateClosed, nil
	default:
		return "", fmt.Errorf("invalid issue state %q: use open, closed, or all", s)
	}
}

// Issue is a read-only projection of an issue returned by the hosting provider.
type Issue struct {
	ID            int64      `json:"id"`
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Body          string     `json:"body,omitempty"`
	State         string     `json:"state"`
	HTMLURL       string     `json:"htmlUrl"`
	Author        string     `json:"author"`
	Labels        []string   `json:"labels,omitempty"`
	Comments      int        `json:"comments"`
	IsPullRequest bool       `json:"isPullRequest,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// IsOpen reports whether the issue is still open.
func (i Issue) IsOpen() bool {
	return i.State == string(StateOpen)
}

// IssueQuery selects one page of a repository's issues.
type IssueQuery struct {
	Page    int
	State   IssueState
	PerPage int
	Since   time.Time
}

// Normalize fills defaults: page 1 and state all.
func (q IssueQuery) Normalize() IssueQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.State == "" {
		q.State = StateAll
	}
	return q
}
