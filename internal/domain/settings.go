package domain

import (
	"context"
	"time"
)

// Settings is the single-row application configuration editable from
// the console UI. Connection-level settings (database, backend URL)
// stay in the environment config instead.
type Settings struct {
	ID                  int64     `json:"id"`
	WorktreeBasePath    string    `json:"worktree_base_path"`
	DefaultBaseBranch   string    `json:"default_base_branch"`
	AgentTimeoutMinutes int       `json:"agent_timeout_minutes"`
	SyncIntervalMinutes int       `json:"sync_interval_minutes"`
	Locale              string    `json:"locale"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}
