package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
)

// ListIssues fetches one page of a repository's issues. The second return value is
// the next page number, or 0 when GitHub reports no further pages.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, q model.IssueQuery) ([]model.Issue, int, error) {
	q = q.Normalize()

	opts := &gh.IssueListByRepoOptions{
		State: string(q.State),
		Since: q.Since,
		ListOptions: gh.ListOptions{
			Page:    q.Page,
			PerPage: q.PerPage,
		},
	}

	ghIssues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, wrapError(err))
	}

	issues := make([]model.Issue, 0, len(ghIssues))
	for _, issue := range ghIssues {
		issues = append(issues, convertIssue(issue))
	}

	next := 0
	if resp != nil {
		next = resp.NextPage
	}

	log.Trace("listed issues", "repo", owner+"/"+repo, "page", q.Page, "count", len(issues), "next_page", next)
	return issues, next, nil
}

// convertIssue maps a go-github issue onto the domain type.
func convertIssue(issue *gh.Issue) model.Issue {
	var labels []string
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	out := model.Issue{
		ID:            issue.GetID(),
		Number:        issue.GetNumber(),
		Title:         issue.GetTitle(),
		Body:          issue.GetBody(),
		State:         issue.GetState(),
		HTMLURL:       issue.GetHTMLURL(),
		Author:        issue.GetUser().GetLogin(),
		Labels:        labels,
		Comments:      issue.GetComments(),
		IsPullRequest: issue.IsPullRequest(),
		CreatedAt:     issue.GetCreatedAt().Time,
		UpdatedAt:     issue.GetUpdatedAt().Time,
	}
	if issue.ClosedAt != nil {
		closed := issue.GetClosedAt().Time
		out.ClosedAt = &closed
	}
	return out
}
