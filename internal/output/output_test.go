package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/issueradar/issueradar/internal/format"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func init() {
	color.NoColor = true
}

func newTestTable() *TableFormatter {
	return &TableFormatter{HotTopicThreshold: DefaultHotTopicThreshold, now: func() time.Time { return fixedNow }}
}

func sampleIssues() []model.Issue {
	return []model.Issue{
		{
			Number:    42,
			Title:     "Crash when parsing empty config",
			State:     "open",
			Author:    "octocat",
			Comments:  12,
			HTMLURL:   "https://github.com/o/r/issues/42",
			UpdatedAt: fixedNow.Add(-2 * time.Hour),
		},
		{
			Number:        43,
			Title:         "Fix typo",
			State:         "closed",
			Author:        "monalisa",
			IsPullRequest: true,
			Labels:        []string{"docs"},
			HTMLURL:       "https://github.com/o/r/pull/43",
			UpdatedAt:     fixedNow.Add(-72 * time.Hour),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatMarkdown).(*MarkdownFormatter); !ok {
		t.Error("expected MarkdownFormatter")
	}
	if _, ok := NewFormatter(FormatTable).(*TableFormatter); !ok {
		t.Error("expected TableFormatter")
	}
}

func TestTableFormatIssues(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestTable().FormatIssues(sampleIssues(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"#42", "Crash when parsing empty config", "octocat", "2h",
		"#43", "monalisa", "3d",
		format.HotTopicIcon, format.PullRequestIcon,
		"2 issues: 1 open, 1 closed, 1 pull requests",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033]8;;") {
		t.Error("hyperlinks must be off when Hyperlinks is false")
	}
}

func TestTableHyperlinks(t *testing.T) {
	f := newTestTable()
	f.Hyperlinks = true

	var buf bytes.Buffer
	if err := f.FormatIssues(sampleIssues()[:1], &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\033]8;;https://github.com/o/r/issues/42\033\\") {
		t.Errorf("expected OSC 8 hyperlink, got:\n%q", buf.String())
	}
}

func TestTableTruncatesLongTitles(t *testing.T) {
	issues := []model.Issue{{Number: 1, State: "open", Title: strings.Repeat("x", 80)}}

	var buf bytes.Buffer
	if err := newTestTable().FormatIssues(issues, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), strings.Repeat("x", 51)) {
		t.Error("title should be truncated to the column width")
	}
	if !strings.Contains(buf.String(), "...") {
		t.Error("truncated title should end with an ellipsis")
	}
}

func TestTableEmptyResults(t *testing.T) {
	f := newTestTable()
	tests := []struct {
		name string
		run  func(*bytes.Buffer) error
		want string
	}{
		{"issues", func(b *bytes.Buffer) error { return f.FormatIssues(nil, b) }, "No issues found."},
		{"projects", func(b *bytes.Buffer) error { return f.FormatProjects(nil, b) }, "No projects found."},
		{"posts", func(b *bytes.Buffer) error { return f.FormatPosts(nil, b) }, "No posts found."},
		{"digests", func(b *bytes.Buffer) error { return f.FormatDigests(nil, b) }, "No digests found."},
		{"digest", func(b *bytes.Buffer) error { return f.FormatDigest(nil, b) }, "No digest yet."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.run(&buf); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTableFormatProjectsAndDigests(t *testing.T) {
	f := newTestTable()

	var buf bytes.Buffer
	projects := []model.Project{{
		ID: "6f1c2a9e-3c1d-4a43-9d55-1a2b3c4d5e6f", Name: "vercel/next.js",
		RepoURL: "https://github.com/vercel/next.js", Subdomain: "nextjs", CreatedAt: fixedNow.Add(-48 * time.Hour),
	}}
	if err := f.FormatProjects(projects, &buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"6f1c2a9e", "vercel/next.js", "nextjs", "2d"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("projects output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	digests := []model.Digest{{ID: "d1", Content: "\nFirst line of summary\nsecond", Published: true, CreatedAt: fixedNow}}
	if err := f.FormatDigests(digests, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "First line of summary") || strings.Contains(buf.String(), "second") {
		t.Errorf("digest preview should show only the first line:\n%s", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}

	var buf bytes.Buffer
	if err := f.FormatIssues(nil, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty issues should encode as [], got %q", buf.String())
	}

	buf.Reset()
	if err := f.FormatRef(repourl.Parse("https://github.com/vercel/next.js"), &buf); err != nil {
		t.Fatal(err)
	}
	var ref map[string]string
	if err := json.Unmarshal(buf.Bytes(), &ref); err != nil {
		t.Fatal(err)
	}
	if ref["user"] != "vercel" || ref["repo"] != "next.js" || ref["provider"] != "GITHUB" {
		t.Errorf("unexpected ref JSON: %v", ref)
	}
}

func TestMarkdownFormatter(t *testing.T) {
	f := &MarkdownFormatter{}

	var buf bytes.Buffer
	if err := f.FormatIssues(sampleIssues(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"## Open (1)",
		"- [#42 Crash when parsing empty config](https://github.com/o/r/issues/42) by @octocat",
		"## Closed (1)",
		"(PR) by @monalisa `docs`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	posts := []model.Post{{ID: "p1", Title: "A | B", Slug: "a-b", UpdatedAt: fixedNow}}
	if err := f.FormatPosts(posts, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `A \| B`) {
		t.Errorf("pipes should be escaped:\n%s", buf.String())
	}

	buf.Reset()
	d := &model.Digest{ID: "d1", Content: "Summary text.", CreatedAt: fixedNow}
	if err := f.FormatDigest(d, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "## Digest 2024-05-10 12:00") || !strings.Contains(buf.String(), "d1 · draft") {
		t.Errorf("unexpected digest markdown:\n%s", buf.String())
	}
}
