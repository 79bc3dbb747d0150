package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/hosting"
)

type ListIssuesInput struct {
	RepositoryID int64  `path:"id" doc:"Repository ID"`
	State        string `query:"state" enum:"open,closed," doc:"Filter by issue state"`
	Labels       string `query:"labels" doc:"Comma-separated label filter"`
}

type ListIssuesOutput struct {
	Body []*domain.Issue
}

type GetIssueInput struct {
	RepositoryID int64 `path:"id" doc:"Repository ID"`
	Number       int   `path:"number" doc:"Issue number"`
}

type GetIssueOutput struct {
	Body *domain.Issue
}

type ListIssueCommentsInput struct {
	RepositoryID int64 `path:"id" doc:"Repository ID"`
	Number       int   `path:"number" doc:"Issue number"`
}

type ListIssueCommentsOutput struct {
	Body []*domain.IssueComment
}

type ListRelatedPullsInput struct {
	RepositoryID int64 `path:"id" doc:"Repository ID"`
	Number       int   `path:"number" doc:"Issue number"`
}

type ListRelatedPullsOutput struct {
	Body []*domain.PullRequest
}

func RegisterIssueRoutes(api huma.API, store DataStore, registry *hosting.Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/issues",
		Summary:     "List issues for a repository",
		Tags:        []string{"Issues"},
	}, func(ctx context.Context, input *ListIssuesInput) (*ListIssuesOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		filter := hosting.IssueFilter{State: input.State}
		if input.Labels != "" {
			filter.Labels = strings.Split(input.Labels, ",")
		}

		issues, err := client.ListIssues(ctx, repo.Owner, repo.RepoName, filter)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list issues from hosting platform", err)
		}

		return &ListIssuesOutput{Body: issues}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/issues/{number}",
		Summary:     "Get one issue",
		Tags:        []string{"Issues"},
	}, func(ctx context.Context, input *GetIssueInput) (*GetIssueOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		issue, err := client.GetIssue(ctx, repo.Owner, repo.RepoName, input.Number)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("issue not found")
			}
			return nil, huma.Error502BadGateway("failed to get issue from hosting platform", err)
		}

		return &GetIssueOutput{Body: issue}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issue-comments",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/issues/{number}/comments",
		Summary:     "List comments on an issue",
		Tags:        []string{"Issues"},
	}, func(ctx context.Context, input *ListIssueCommentsInput) (*ListIssueCommentsOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		comments, err := client.ListIssueComments(ctx, repo.Owner, repo.RepoName, input.Number)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("issue not found")
			}
			return nil, huma.Error502BadGateway("failed to list issue comments from hosting platform", err)
		}

		return &ListIssueCommentsOutput{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-related-pulls",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/issues/{number}/related-pulls",
		Summary:     "List pull requests that reference an issue",
		Tags:        []string{"Issues"},
	}, func(ctx context.Context, input *ListRelatedPullsInput) (*ListRelatedPullsOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		// Closed and merged pulls count too, so fetch every state.
		pulls, err := client.ListPulls(ctx, repo.Owner, repo.RepoName, "all")
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list pull requests from hosting platform", err)
		}

		return &ListRelatedPullsOutput{Body: hosting.RelatedPulls(pulls, input.Number)}, nil
	})
}

// resolveHosting loads a registered repository and the hosting client
// for its platform.
func resolveHosting(ctx context.Context, store DataStore, registry *hosting.Registry, repositoryID int64) (*domain.Repository, hosting.Client, error) {
	repo, err := store.Repositories().GetByID(ctx, repositoryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("repository not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to get repository", err)
	}

	client, err := registry.For(repo.Platform)
	if err != nil {
		return nil, nil, huma.Error500InternalServerError("no hosting client for platform", err)
	}

	return repo, client, nil
}
