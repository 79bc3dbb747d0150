package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/hosting"
)

type ListPullsInput struct {
	RepositoryID int64  `path:"id" doc:"Repository ID"`
	State        string `query:"state" enum:"open,closed,all," doc:"Filter by pull request state"`
}

type ListPullsOutput struct {
	Body []*domain.PullRequest
}

type GetPullInput struct {
	RepositoryID int64 `path:"id" doc:"Repository ID"`
	Number       int   `path:"number" doc:"Pull request number"`
}

type GetPullOutput struct {
	Body *domain.PullRequest
}

func RegisterPullRoutes(api huma.API, store DataStore, registry *hosting.Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pulls",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/pulls",
		Summary:     "List pull requests for a repository",
		Tags:        []string{"Pulls"},
	}, func(ctx context.Context, input *ListPullsInput) (*ListPullsOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		pulls, err := client.ListPulls(ctx, repo.Owner, repo.RepoName, input.State)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to list pull requests from hosting platform", err)
		}

		return &ListPullsOutput{Body: pulls}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pull",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}/pulls/{number}",
		Summary:     "Get one pull request",
		Tags:        []string{"Pulls"},
	}, func(ctx context.Context, input *GetPullInput) (*GetPullOutput, error) {
		repo, client, err := resolveHosting(ctx, store, registry, input.RepositoryID)
		if err != nil {
			return nil, err
		}

		pull, err := client.GetPull(ctx, repo.Owner, repo.RepoName, input.Number)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("pull request not found")
			}
			return nil, huma.Error502BadGateway("failed to get pull request from hosting platform", err)
		}

		return &GetPullOutput{Body: pull}, nil
	})
}
