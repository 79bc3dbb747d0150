package domain

import (
	"context"
	"fmt"
	"time"
)

type Platform string

const (
	PlatformGitHub Platform = "GitHub"
	PlatformGitea  Platform = "Gitea"
)

// ParsePlatform converts a stored string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch s {
	case string(PlatformGitHub):
		return PlatformGitHub, nil
	case string(PlatformGitea):
		return PlatformGitea, nil
	default:
		return "", fmt.Errorf("domain.ParsePlatform: unknown platform %q", s)
	}
}

// Repository is a registered source-hosting repository the console
// browses issues for and dispatches agent jobs against.
type Repository struct {
	ID           int64      `json:"id"`
	Platform     Platform   `json:"platform"`
	BaseURL      string     `json:"base_url"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Owner        string     `json:"owner"`
	RepoName     string     `json:"repo_name"`
	LocalPath    *string    `json:"local_path,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type RepositoryStore interface {
	Create(ctx context.Context, r *Repository) error
	GetByID(ctx context.Context, id int64) (*Repository, error)
	List(ctx context.Context) ([]*Repository, error)
	Update(ctx context.Context, r *Repository) error
	Delete(ctx context.Context, id int64) error
}
