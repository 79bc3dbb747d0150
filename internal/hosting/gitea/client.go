package gitea

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/hosting"
)

const listPageSize = 50

// Client reads issues and pull requests from a Gitea instance via its
// REST API.
type Client struct {
	http *resty.Client
}

// New creates a Gitea client for one instance. An empty token yields
// unauthenticated access.
func New(baseURL, token string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if token != "" {
		client.SetHeader("Authorization", "token "+token)
	}

	return &Client{http: client}
}

type giteaUser struct {
	Login string `json:"login"`
}

type giteaLabel struct {
	Name string `json:"name"`
}

type giteaIssue struct {
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	State     string       `json:"state"`
	Labels    []giteaLabel `json:"labels"`
	User      giteaUser    `json:"user"`
	HTMLURL   string       `json:"html_url"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type giteaComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      giteaUser `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type giteaBranch struct {
	Ref string `json:"ref"`
}

type giteaPull struct {
	Number    int         `json:"number"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	State     string      `json:"state"`
	Head      giteaBranch `json:"head"`
	Base      giteaBranch `json:"base"`
	User      giteaUser   `json:"user"`
	HTMLURL   string      `json:"html_url"`
	Merged    bool        `json:"merged"`
	MergedAt  *time.Time  `json:"merged_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (c *Client) ListIssues(ctx context.Context, owner, repo string, filter hosting.IssueFilter) ([]*domain.Issue, error) {
	state := filter.State
	if state == "" {
		state = "open"
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("state", state).
		SetQueryParam("type", "issues").
		SetQueryParam("limit", fmt.Sprintf("%d", listPageSize))
	if len(filter.Labels) > 0 {
		req.SetQueryParam("labels", strings.Join(filter.Labels, ","))
	}

	var raw []giteaIssue
	resp, err := req.SetResult(&raw).Get(fmt.Sprintf("/api/v1/repos/%s/%s/issues", owner, repo))
	if err != nil {
		return nil, fmt.Errorf("gitea.Client.ListIssues: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitea.Client.ListIssues: unexpected status %s", resp.Status())
	}

	issues := make([]*domain.Issue, 0, len(raw))
	for i := range raw {
		issues = append(issues, toIssue(&raw[i]))
	}

	return issues, nil
}

func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error) {
	var raw giteaIssue
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&raw).
		Get(fmt.Sprintf("/api/v1/repos/%s/%s/issues/%d", owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("gitea.Client.GetIssue: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("gitea.Client.GetIssue: %w", domain.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitea.Client.GetIssue: unexpected status %s", resp.Status())
	}

	return toIssue(&raw), nil
}

func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*domain.IssueComment, error) {
	var raw []giteaComment
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&raw).
		Get(fmt.Sprintf("/api/v1/repos/%s/%s/issues/%d/comments", owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("gitea.Client.ListIssueComments: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("gitea.Client.ListIssueComments: %w", domain.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitea.Client.ListIssueComments: unexpected status %s", resp.Status())
	}

	comments := make([]*domain.IssueComment, 0, len(raw))
	for i := range raw {
		comments = append(comments, toComment(&raw[i]))
	}

	return comments, nil
}

func (c *Client) ListPulls(ctx context.Context, owner, repo string, state string) ([]*domain.PullRequest, error) {
	if state == "" {
		state = "open"
	}

	var raw []giteaPull
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("state", state).
		SetQueryParam("limit", fmt.Sprintf("%d", listPageSize)).
		SetResult(&raw).
		Get(fmt.Sprintf("/api/v1/repos/%s/%s/pulls", owner, repo))
	if err != nil {
		return nil, fmt.Errorf("gitea.Client.ListPulls: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitea.Client.ListPulls: unexpected status %s", resp.Status())
	}

	pulls := make([]*domain.PullRequest, 0, len(raw))
	for i := range raw {
		pulls = append(pulls, toPull(&raw[i]))
	}

	return pulls, nil
}

func (c *Client) GetPull(ctx context.Context, owner, repo string, number int) (*domain.PullRequest, error) {
	var raw giteaPull
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&raw).
		Get(fmt.Sprintf("/api/v1/repos/%s/%s/pulls/%d", owner, repo, number))
	if err != nil {
		return nil, fmt.Errorf("gitea.Client.GetPull: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("gitea.Client.GetPull: %w", domain.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gitea.Client.GetPull: unexpected status %s", resp.Status())
	}

	return toPull(&raw), nil
}

func toIssue(raw *giteaIssue) *domain.Issue {
	labels := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		labels = append(labels, l.Name)
	}

	return &domain.Issue{
		Number:    raw.Number,
		Title:     raw.Title,
		Body:      raw.Body,
		State:     raw.State,
		Labels:    labels,
		Author:    raw.User.Login,
		URL:       raw.HTMLURL,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
}

func toComment(raw *giteaComment) *domain.IssueComment {
	return &domain.IssueComment{
		ID:        raw.ID,
		Author:    raw.User.Login,
		Body:      raw.Body,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
}

func toPull(raw *giteaPull) *domain.PullRequest {
	pr := &domain.PullRequest{
		Number:    raw.Number,
		Title:     raw.Title,
		Body:      raw.Body,
		State:     raw.State,
		Head:      raw.Head.Ref,
		Base:      raw.Base.Ref,
		Author:    raw.User.Login,
		URL:       raw.HTMLURL,
		Merged:    raw.Merged,
		MergedAt:  raw.MergedAt,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if pr.Merged {
		pr.State = "merged"
	}

	return pr
}
