package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentdesk/internal/domain"
)

// SettingsRepo manages the single settings row. Get never returns
// ErrNotFound: a missing row is created with defaults on first read.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings

	err := r.pool.QueryRow(ctx,
		`SELECT id, worktree_base_path, default_base_branch, agent_timeout_minutes,
		        sync_interval_minutes, locale, created_at, updated_at
		 FROM settings
		 ORDER BY id
		 LIMIT 1`,
	).Scan(
		&s.ID, &s.WorktreeBasePath, &s.DefaultBaseBranch, &s.AgentTimeoutMinutes,
		&s.SyncIntervalMinutes, &s.Locale, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.seed(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("settingsRepo.Get: %w", err)
	}

	return &s, nil
}

func (r *SettingsRepo) Update(ctx context.Context, s *domain.Settings) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE settings SET worktree_base_path = $1, default_base_branch = $2,
		        agent_timeout_minutes = $3, sync_interval_minutes = $4, locale = $5, updated_at = now()
		 WHERE id = $6`,
		s.WorktreeBasePath, s.DefaultBaseBranch,
		s.AgentTimeoutMinutes, s.SyncIntervalMinutes, s.Locale,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("settingsRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settingsRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *SettingsRepo) seed(ctx context.Context) (*domain.Settings, error) {
	s := domain.Settings{
		WorktreeBasePath:    "~/.agentdesk/worktrees",
		DefaultBaseBranch:   "main",
		AgentTimeoutMinutes: 30,
		SyncIntervalMinutes: 15,
		Locale:              "en",
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO settings (worktree_base_path, default_base_branch, agent_timeout_minutes, sync_interval_minutes, locale)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		s.WorktreeBasePath, s.DefaultBaseBranch, s.AgentTimeoutMinutes, s.SyncIntervalMinutes, s.Locale,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("settingsRepo.seed: %w", err)
	}

	return &s, nil
}
