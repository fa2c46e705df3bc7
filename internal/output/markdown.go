package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

// MarkdownFormatter formats output as Markdown
type MarkdownFormatter struct{}

// escapeCell keeps table cells on one line and escapes column separators.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

// FormatRef outputs a parsed repository URL as Markdown
func (f *MarkdownFormatter) FormatRef(ref repourl.Ref, w io.Writer) error {
	fmt.Fprintf(w, "- **Provider:** %s\n", ref.Provider)
	fmt.Fprintf(w, "- **User:** %s\n", ref.User)
	fmt.Fprintf(w, "- **Repo:** %s\n", ref.Repo)
	return nil
}

// FormatIssues outputs issues as a Markdown list grouped by state
func (f *MarkdownFormatter) FormatIssues(issues []model.Issue, w io.Writer) error {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}

	var open, closed []model.Issue
	for _, issue := range issues {
		if issue.IsOpen() {
			open = append(open, issue)
		} else {
			closed = append(closed, issue)
		}
	}

	for _, group := range []struct {
		title  string
		issues []model.Issue
	}{
		{"Open", open},
		{"Closed", closed},
	} {
		if len(group.issues) == 0 {
			continue
		}
		fmt.Fprintf(w, "## %s (%d)\n\n", group.title, len(group.issues))
		for _, issue := range group.issues {
			kind := ""
			if issue.IsPullRequest {
				kind = " (PR)"
			}
			fmt.Fprintf(w, "- [#%d %s](%s)%s by @%s", issue.Number, issue.Title, issue.HTMLURL, kind, issue.Author)
			if len(issue.Labels) > 0 {
				fmt.Fprintf(w, " `%s`", strings.Join(issue.Labels, "` `"))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// FormatProjects outputs projects as a Markdown table
func (f *MarkdownFormatter) FormatProjects(projects []model.Project, w io.Writer) error {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}

	fmt.Fprintln(w, "| ID | Name | Repository | Subdomain | Created |")
	fmt.Fprintln(w, "|----|------|------------|-----------|---------|")
	for _, p := range projects {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			p.ID, escapeCell(p.Name), p.RepoURL, escapeCell(p.Subdomain), p.CreatedAt.Format(time.DateOnly))
	}
	return nil
}

// FormatPosts outputs posts as a Markdown table
func (f *MarkdownFormatter) FormatPosts(posts []model.Post, w io.Writer) error {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	fmt.Fprintln(w, "| ID | Title | Slug | Published | Updated |")
	fmt.Fprintln(w, "|----|-------|------|-----------|---------|")
	for _, p := range posts {
		fmt.Fprintf(w, "| %s | %s | %s | %t | %s |\n",
			p.ID, escapeCell(p.Title), escapeCell(p.Slug), p.Published, p.UpdatedAt.Format(time.DateOnly))
	}
	return nil
}

// FormatDigests outputs each digest as a section, newest first
func (f *MarkdownFormatter) FormatDigests(digests []model.Digest, w io.Writer) error {
	if len(digests) == 0 {
		fmt.Fprintln(w, "No digests found.")
		return nil
	}
	for i := range digests {
		if i > 0 {
			fmt.Fprintln(w, "---")
			fmt.Fprintln(w)
		}
		if err := f.FormatDigest(&digests[i], w); err != nil {
			return err
		}
	}
	return nil
}

// FormatDigest outputs a single digest as a Markdown section
func (f *MarkdownFormatter) FormatDigest(d *model.Digest, w io.Writer) error {
	if d == nil {
		fmt.Fprintln(w, "No digest yet.")
		return nil
	}

	status := "draft"
	if d.Published {
		status = "published"
	}
	fmt.Fprintf(w, "## Digest %s\n\n", d.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "*%s · %s*\n\n", d.ID, status)
	fmt.Fprintln(w, strings.TrimSpace(d.Content))
	fmt.Fprintln(w)
	return nil
}
