// Package output renders issues, projects, posts and digests for the terminal.
package output

import (
	"fmt"
	"io"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

// Format represents the output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user-supplied format name. Empty input means table.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid output format %q: use table, json, or markdown", s)
	}
}

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatRef(ref repourl.Ref, w io.Writer) error
	FormatIssues(issues []model.Issue, w io.Writer) error
	FormatProjects(projects []model.Project, w io.Writer) error
	FormatPosts(posts []model.Post, w io.Writer) error
	FormatDigests(digests []model.Digest, w io.Writer) error
	// FormatDigest renders a single digest with its full content.
	FormatDigest(d *model.Digest, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return NewTableFormatter()
	}
}
