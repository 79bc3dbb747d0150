package hosting

import (
	"context"
	"fmt"

	"github.com/gosuda/agentdesk/internal/domain"
)

// IssueFilter narrows issue listings. Zero values mean "no filter".
type IssueFilter struct {
	State  string // "open", "closed" or "" for all
	Labels []string
}

// Client reads issues and pull requests from one hosting platform.
// All reads are on-demand; nothing is cached or persisted here.
type Client interface {
	ListIssues(ctx context.Context, owner, repo string, filter IssueFilter) ([]*domain.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*domain.Issue, error)
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*domain.IssueComment, error)
	ListPulls(ctx context.Context, owner, repo string, state string) ([]*domain.PullRequest, error)
	GetPull(ctx context.Context, owner, repo string, number int) (*domain.PullRequest, error)
}

// Registry resolves the Client for a repository's platform.
type Registry struct {
	clients map[domain.Platform]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.Platform]Client)}
}

// Register installs the client for a platform, replacing any previous
// one.
func (r *Registry) Register(platform domain.Platform, c Client) {
	r.clients[platform] = c
}

// For returns the client registered for a platform.
func (r *Registry) For(platform domain.Platform) (Client, error) {
	c, ok := r.clients[platform]
	if !ok {
		return nil, fmt.Errorf("hosting.Registry.For: no client registered for platform %q", platform)
	}
	return c, nil
}
