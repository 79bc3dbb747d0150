package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/hosting"
)

const listPageSize = 50

// Client reads issues and pull requests from GitHub.
type Client struct {
	gh *github.Client
}

// New creates a GitHub client. An empty token yields unauthenticated
// access, which is enough for public repositories.
func New(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil)}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token)})
	return &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

func (c *Client) ListIssues(ctx context.Context, owner, repo string, filter hosting.IssueFilter) ([]*domain.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       filter.State,
		Labels:      filter.Labels,
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	if opts.State == "" {
		opts.State = "open"
	}

	ghIssues, _, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("github.Client.ListIssues: %w", err)
	}

	issues := make([]*domain.Issue, 0, len(ghIssues))
	for _, gi := range ghIssues {
		// The issues API also returns pull requests.
		if gi.IsPullRequest() {
			continue
		}
		issues = append(issues, toIssue(gi))
	}

	return issues, nil
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error) {
	gi, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("github.Client.GetIssue: %w", err)
	}

	return toIssue(gi), nil
}

func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*domain.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}

	ghComments, _, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
	if err != nil {
		return nil, fmt.Errorf("github.Client.ListIssueComments: %w", err)
	}

	comments := make([]*domain.IssueComment, 0, len(ghComments))
	for _, gc := range ghComments {
		comments = append(comments, toComment(gc))
	}

	return comments, nil
}

func (c *Client) ListPulls(ctx context.Context, owner, repo string, state string) ([]*domain.PullRequest, error) {
	if state == "" {
		state = "open"
	}
	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}

	ghPulls, _, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("github.Client.ListPulls: %w", err)
	}

	pulls := make([]*domain.PullRequest, 0, len(ghPulls))
	for _, gp := range ghPulls {
		pulls = append(pulls, toPull(gp))
	}

	return pulls, nil
}

func (c *Client) GetPull(ctx context.Context, owner, repo string, number int) (*domain.PullRequest, error) {
	gp, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("github.Client.GetPull: %w", err)
	}

	return toPull(gp), nil
}

func toIssue(gi *github.Issue) *domain.Issue {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.GetName())
	}

	return &domain.Issue{
		Number:    gi.GetNumber(),
		Title:     gi.GetTitle(),
		Body:      gi.GetBody(),
		State:     gi.GetState(),
		Labels:    labels,
		Author:    gi.GetUser().GetLogin(),
		URL:       gi.GetHTMLURL(),
		CreatedAt: gi.GetCreatedAt().Time,
		UpdatedAt: gi.GetUpdatedAt().Time,
	}
}

func toComment(gc *github.IssueComment) *domain.IssueComment {
	return &domain.IssueComment{
		ID:        gc.GetID(),
		Author:    gc.GetUser().GetLogin(),
		Body:      gc.GetBody(),
		CreatedAt: gc.GetCreatedAt().Time,
		UpdatedAt: gc.GetUpdatedAt().Time,
	}
}

func toPull(gp *github.PullRequest) *domain.PullRequest {
	pr := &domain.PullRequest{
		Number:    gp.GetNumber(),
		Title:     gp.GetTitle(),
		Body:      gp.GetBody(),
		State:     gp.GetState(),
		Head:      gp.GetHead().GetRef(),
		Base:      gp.GetBase().GetRef(),
		Author:    gp.GetUser().GetLogin(),
		URL:       gp.GetHTMLURL(),
		Merged:    gp.GetMerged(),
		CreatedAt: gp.GetCreatedAt().Time,
		UpdatedAt: gp.GetUpdatedAt().Time,
	}
	if gp.MergedAt != nil {
		t := gp.MergedAt.Time
		pr.MergedAt = &t
		pr.Merged = true
		pr.State = "merged"
	}

	return pr
}
