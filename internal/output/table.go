package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/issueradar/issueradar/internal/format"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

// DefaultHotTopicThreshold is the comment count above which an issue is a hot topic.
const DefaultHotTopicThreshold = 10

// TableFormatter formats output as a terminal table
type TableFormatter struct {
	// Hyperlinks enables OSC 8 links on issue titles.
	Hyperlinks        bool
	HotTopicThreshold int
	now               func() time.Time
}

// NewTableFormatter returns a table formatter that emits hyperlinks only when
// stdout is a terminal.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		Hyperlinks:        term.IsTerminal(int(os.Stdout.Fd())),
		HotTopicThreshold: DefaultHotTopicThreshold,
		now:               time.Now,
	}
}

func (f *TableFormatter) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// hyperlink creates a clickable terminal hyperlink using OSC 8
// Format: \033]8;;URL\033\\TEXT\033]8;;\033\\
func (f *TableFormatter) hyperlink(text, url string) string {
	if !f.Hyperlinks || url == "" {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

// cell truncates s to width and pads it, keeping ANSI codes intact.
func cell(s string, width int) string {
	s, visible := format.TruncateToWidth(s, width)
	return format.PadRight(s, visible, width)
}

func colorState(state string) string {
	switch state {
	case string(model.StateOpen):
		return color.GreenString(state)
	case string(model.StateClosed):
		return color.RedString(state)
	default:
		return state
	}
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.HiBlackString("no")
}

// FormatRef outputs a parsed repository URL
func (f *TableFormatter) FormatRef(ref repourl.Ref, w io.Writer) error {
	fmt.Fprintf(w, "%-10s %s\n", "Provider", ref.Provider)
	fmt.Fprintf(w, "%-10s %s\n", "User", ref.User)
	fmt.Fprintf(w, "%-10s %s\n", "Repo", ref.Repo)
	return nil
}

// FormatIssues outputs issues as a table
func (f *TableFormatter) FormatIssues(issues []model.Issue, w io.Writer) error {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}

	const (
		colNumber   = 7
		colState    = 6
		colTitle    = 50
		colAuthor   = 16
		colComments = 4
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %*s  %s\n",
		colNumber, "Number",
		colState, "State",
		colTitle+format.IconWidth, "Title",
		colAuthor, "Author",
		colComments, "Cmts",
		"Age")
	fmt.Fprintln(w, strings.Repeat("-", colNumber+colState+colTitle+format.IconWidth+colAuthor+colComments+15))

	now := f.clock()
	for _, issue := range issues {
		icon := format.Icon(format.IconOptions{
			CommentCount:      issue.Comments,
			HotTopicThreshold: f.HotTopicThreshold,
			IsPR:              issue.IsPullRequest,
			Labels:            issue.Labels,
		})
		iconCol := strings.Repeat(" ", format.IconWidth)
		if icon != format.IconNone {
			iconCol = icon.String() + " "
		}

		title, visible := format.TruncateToWidth(issue.Title, colTitle)
		title = format.PadRight(f.hyperlink(title, issue.HTMLURL), visible, colTitle)

		fmt.Fprintf(w, "%s  %s  %s%s  %s  %*d  %s\n",
			cell(fmt.Sprintf("#%d", issue.Number), colNumber),
			format.PadRight(colorState(issue.State), len(issue.State), colState),
			iconCol,
			title,
			cell(issue.Author, colAuthor),
			colComments, issue.Comments,
			format.Age(issue.UpdatedAt, now),
		)
	}

	printIssueSummary(issues, w)
	return nil
}

func printIssueSummary(issues []model.Issue, w io.Writer) {
	var open, closed, prs int
	for _, issue := range issues {
		if issue.IsPullRequest {
			prs++
		}
		if issue.IsOpen() {
			open++
		} else {
			closed++
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d issues: %s open, %s closed", len(issues),
		color.GreenString("%d", open), color.RedString("%d", closed))
	if prs > 0 {
		summary += fmt.Sprintf(", %d pull requests", prs)
	}
	fmt.Fprintln(w, summary)
}

// FormatProjects outputs projects as a table
func (f *TableFormatter) FormatProjects(projects []model.Project, w io.Writer) error {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found. Add one with: issueradar project add <repo-url>")
		return nil
	}

	const (
		colID   = 8
		colName = 28
		colRepo = 40
		colSub  = 16
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %s\n",
		colID, "ID", colName, "Name", colRepo, "Repository", colSub, "Subdomain", "Created")
	fmt.Fprintln(w, strings.Repeat("-", colID+colName+colRepo+colSub+15))

	now := f.clock()
	for _, p := range projects {
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			cell(format.ShortID(p.ID), colID),
			cell(p.Name, colName),
			cell(p.RepoURL, colRepo),
			cell(p.Subdomain, colSub),
			format.Age(p.CreatedAt, now),
		)
	}
	return nil
}

// FormatPosts outputs posts as a table
func (f *TableFormatter) FormatPosts(posts []model.Post, w io.Writer) error {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	const (
		colID        = 8
		colTitle     = 40
		colSlug      = 20
		colPublished = 9
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %s\n",
		colID, "ID", colTitle, "Title", colSlug, "Slug", colPublished, "Published", "Updated")
	fmt.Fprintln(w, strings.Repeat("-", colID+colTitle+colSlug+colPublished+15))

	now := f.clock()
	for _, p := range posts {
		published := yesNo(p.Published)
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			cell(format.ShortID(p.ID), colID),
			cell(p.Title, colTitle),
			cell(p.Slug, colSlug),
			format.PadRight(published, format.DisplayWidth(published), colPublished),
			format.Age(p.UpdatedAt, now),
		)
	}
	return nil
}

// FormatDigests outputs digests as a table with a one-line preview
func (f *TableFormatter) FormatDigests(digests []model.Digest, w io.Writer) error {
	if len(digests) == 0 {
		fmt.Fprintln(w, "No digests found. Generate one with: issueradar digest generate <project-id>")
		return nil
	}

	const (
		colID        = 8
		colPublished = 9
		colCreated   = 7
		colPreview   = 60
	)

	fmt.Fprintf(w, "%-*s  %-*s  %-*s  %s\n",
		colID, "ID", colPublished, "Published", colCreated, "Created", "Preview")
	fmt.Fprintln(w, strings.Repeat("-", colID+colPublished+colCreated+colPreview+6))

	now := f.clock()
	for i, d := range digests {
		id := format.ShortID(d.ID)
		if i == 0 {
			// Listed newest first, so the first row is the active digest.
			id = color.New(color.Bold).Sprint(id)
		}
		published := yesNo(d.Published)
		preview, _ := format.TruncateToWidth(format.FirstLine(d.Content), colPreview)
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			format.PadRight(id, format.DisplayWidth(id), colID),
			format.PadRight(published, format.DisplayWidth(published), colPublished),
			cell(format.Age(d.CreatedAt, now), colCreated),
			preview,
		)
	}
	return nil
}

// FormatDigest outputs a single digest with its full content
func (f *TableFormatter) FormatDigest(d *model.Digest, w io.Writer) error {
	if d == nil {
		fmt.Fprintln(w, "No digest yet.")
		return nil
	}

	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Digest"), d.ID)
	fmt.Fprintf(w, "%-10s %s\n", "Project", d.ProjectID)
	fmt.Fprintf(w, "%-10s %s\n", "Published", yesNo(d.Published))
	fmt.Fprintf(w, "%-10s %s\n", "Created", d.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(d.Content))
	return nil
}
