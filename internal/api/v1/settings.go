package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentdesk/internal/domain"
)

type GetSettingsOutput struct {
	Body *domain.Settings
}

type UpdateSettingsInput struct {
	Body struct {
		WorktreeBasePath    string `json:"worktree_base_path,omitempty" doc:"Base directory for agent worktrees"`
		DefaultBaseBranch   string `json:"default_base_branch,omitempty" doc:"Branch agents target by default"`
		AgentTimeoutMinutes int    `json:"agent_timeout_minutes,omitempty" minimum:"0" maximum:"1440" doc:"Workflow timeout in minutes"`
		SyncIntervalMinutes int    `json:"sync_interval_minutes,omitempty" minimum:"0" maximum:"1440" doc:"Repository sync interval in minutes"`
		Locale              string `json:"locale,omitempty" doc:"UI locale"`
	}
}

type UpdateSettingsOutput struct {
	Body *domain.Settings
}

func RegisterSettingsRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Get application settings",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, _ *struct{}) (*GetSettingsOutput, error) {
		settings, err := store.Settings().Get(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get settings", err)
		}

		return &GetSettingsOutput{Body: settings}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPut,
		Path:        "/settings",
		Summary:     "Update application settings",
		Tags:        []string{"Settings"},
	}, func(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
		existing, err := store.Settings().Get(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get settings", err)
		}

		if input.Body.WorktreeBasePath != "" {
			existing.WorktreeBasePath = input.Body.WorktreeBasePath
		}
		if input.Body.DefaultBaseBranch != "" {
			existing.DefaultBaseBranch = input.Body.DefaultBaseBranch
		}
		if input.Body.AgentTimeoutMinutes > 0 {
			existing.AgentTimeoutMinutes = input.Body.AgentTimeoutMinutes
		}
		if input.Body.SyncIntervalMinutes > 0 {
			existing.SyncIntervalMinutes = input.Body.SyncIntervalMinutes
		}
		if input.Body.Locale != "" {
			existing.Locale = input.Body.Locale
		}

		if err := store.Settings().Update(ctx, existing); err != nil {
			return nil, huma.Error500InternalServerError("failed to update settings", err)
		}

		return &UpdateSettingsOutput{Body: existing}, nil
	})
}
