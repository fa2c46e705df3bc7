package output

import (
	"encoding/json"
	"io"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) encode(v any, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatRef outputs a parsed repository URL as JSON
func (f *JSONFormatter) FormatRef(ref repourl.Ref, w io.Writer) error {
	return f.encode(ref, w)
}

// FormatIssues outputs issues as JSON
func (f *JSONFormatter) FormatIssues(issues []model.Issue, w io.Writer) error {
	return f.encode(nonNil(issues), w)
}

// FormatProjects outputs projects as JSON
func (f *JSONFormatter) FormatProjects(projects []model.Project, w io.Writer) error {
	return f.encode(nonNil(projects), w)
}

// FormatPosts outputs posts as JSON
func (f *JSONFormatter) FormatPosts(posts []model.Post, w io.Writer) error {
	return f.encode(nonNil(posts), w)
}

// FormatDigests outputs digests as JSON
func (f *JSONFormatter) FormatDigests(digests []model.Digest, w io.Writer) error {
	return f.encode(nonNil(digests), w)
}

// FormatDigest outputs a single digest as JSON
func (f *JSONFormatter) FormatDigest(d *model.Digest, w io.Writer) error {
	return f.encode(d, w)
}

// nonNil makes empty results encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
