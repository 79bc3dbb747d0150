package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentdesk/internal/domain"
)

type CreateRepositoryInput struct {
	Body struct {
		Platform  string  `json:"platform" enum:"GitHub,Gitea" doc:"Hosting platform"`
		BaseURL   string  `json:"base_url" minLength:"1" doc:"Platform base URL"`
		Name      string  `json:"name" minLength:"1" maxLength:"200" doc:"Display name"`
		URL       string  `json:"url" minLength:"1" doc:"Repository web URL"`
		Owner     string  `json:"owner" minLength:"1" doc:"Repository owner"`
		RepoName  string  `json:"repo_name" minLength:"1" doc:"Repository name on the platform"`
		LocalPath *string `json:"local_path,omitempty" doc:"Optional local clone path"`
	}
}

type CreateRepositoryOutput struct {
	Body *domain.Repository
}

type ListRepositoriesOutput struct {
	Body []*domain.Repository
}

type GetRepositoryInput struct {
	ID int64 `path:"id" doc:"Repository ID"`
}

type GetRepositoryOutput struct {
	Body *domain.Repository
}

type UpdateRepositoryInput struct {
	ID   int64 `path:"id" doc:"Repository ID"`
	Body struct {
		Name      string  `json:"name,omitempty" maxLength:"200" doc:"Display name"`
		URL       string  `json:"url,omitempty" doc:"Repository web URL"`
		LocalPath *string `json:"local_path,omitempty" doc:"Local clone path"`
	}
}

type UpdateRepositoryOutput struct {
	Body *domain.Repository
}

type DeleteRepositoryInput struct {
	ID int64 `path:"id" doc:"Repository ID"`
}

func RegisterRepositoryRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-repository",
		Method:      http.MethodPost,
		Path:        "/repositories",
		Summary:     "Register a repository",
		Tags:        []string{"Repositories"},
	}, func(ctx context.Context, input *CreateRepositoryInput) (*CreateRepositoryOutput, error) {
		platform, err := domain.ParsePlatform(input.Body.Platform)
		if err != nil {
			return nil, huma.Error400BadRequest("unknown platform: " + input.Body.Platform)
		}

		repo := &domain.Repository{
			Platform:  platform,
			BaseURL:   input.Body.BaseURL,
			Name:      input.Body.Name,
			URL:       input.Body.URL,
			Owner:     input.Body.Owner,
			RepoName:  input.Body.RepoName,
			LocalPath: input.Body.LocalPath,
		}

		if err := store.Repositories().Create(ctx, repo); err != nil {
			return nil, huma.Error500InternalServerError("failed to create repository", err)
		}

		return &CreateRepositoryOutput{Body: repo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-repositories",
		Method:      http.MethodGet,
		Path:        "/repositories",
		Summary:     "List registered repositories",
		Tags:        []string{"Repositories"},
	}, func(ctx context.Context, _ *struct{}) (*ListRepositoriesOutput, error) {
		repos, err := store.Repositories().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list repositories", err)
		}

		return &ListRepositoriesOutput{Body: repos}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-repository",
		Method:      http.MethodGet,
		Path:        "/repositories/{id}",
		Summary:     "Get a repository by ID",
		Tags:        []string{"Repositories"},
	}, func(ctx context.Context, input *GetRepositoryInput) (*GetRepositoryOutput, error) {
		repo, err := store.Repositories().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("repository not found")
			}
			return nil, huma.Error500InternalServerError("failed to get repository", err)
		}

		return &GetRepositoryOutput{Body: repo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-repository",
		Method:      http.MethodPut,
		Path:        "/repositories/{id}",
		Summary:     "Update a repository",
		Tags:        []string{"Repositories"},
	}, func(ctx context.Context, input *UpdateRepositoryInput) (*UpdateRepositoryOutput, error) {
		existing, err := store.Repositories().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("repository not found")
			}
			return nil, huma.Error500InternalServerError("failed to get repository", err)
		}

		if input.Body.Name != "" {
			existing.Name = input.Body.Name
		}
		if input.Body.URL != "" {
			existing.URL = input.Body.URL
		}
		if input.Body.LocalPath != nil {
			existing.LocalPath = input.Body.LocalPath
		}

		if err := store.Repositories().Update(ctx, existing); err != nil {
			return nil, huma.Error500InternalServerError("failed to update repository", err)
		}

		return &UpdateRepositoryOutput{Body: existing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-repository",
		Method:      http.MethodDelete,
		Path:        "/repositories/{id}",
		Summary:     "Delete a repository and its jobs",
		Tags:        []string{"Repositories"},
	}, func(ctx context.Context, input *DeleteRepositoryInput) (*struct{}, error) {
		// Jobs reference their repository; remove them first.
		if err := store.Jobs().DeleteByRepository(ctx, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete repository jobs", err)
		}

		if err := store.Repositories().Delete(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("repository not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete repository", err)
		}

		return nil, nil
	})
}
