package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentdesk/internal/domain"
)

type RepositoryRepo struct {
	pool *pgxpool.Pool
}

func NewRepositoryRepo(pool *pgxpool.Pool) *RepositoryRepo {
	return &RepositoryRepo{pool: pool}
}

func (r *RepositoryRepo) Create(ctx context.Context, repo *domain.Repository) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO repositories (platform, base_url, name, url, owner, repo_name, local_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		repo.Platform, repo.BaseURL, repo.Name, repo.URL, repo.Owner, repo.RepoName, repo.LocalPath,
	).Scan(&repo.ID, &repo.CreatedAt, &repo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repositoryRepo.Create: %w", err)
	}

	return nil
}

func (r *RepositoryRepo) GetByID(ctx context.Context, id int64) (*domain.Repository, error) {
	var repo domain.Repository

	err := r.pool.QueryRow(ctx,
		`SELECT id, platform, base_url, name, url, owner, repo_name, local_path,
		        last_synced_at, created_at, updated_at
		 FROM repositories WHERE id = $1`,
		id,
	).Scan(
		&repo.ID, &repo.Platform, &repo.BaseURL, &repo.Name, &repo.URL, &repo.Owner,
		&repo.RepoName, &repo.LocalPath, &repo.LastSyncedAt, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repositoryRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repositoryRepo.GetByID: %w", err)
	}

	return &repo, nil
}

func (r *RepositoryRepo) List(ctx context.Context) ([]*domain.Repository, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, platform, base_url, name, url, owner, repo_name, local_path,
		        last_synced_at, created_at, updated_at
		 FROM repositories
		 ORDER BY name
		 LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("repositoryRepo.List: %w", err)
	}
	defer rows.Close()

	var repos []*domain.Repository
	for rows.Next() {
		var repo domain.Repository
		if err := rows.Scan(
			&repo.ID, &repo.Platform, &repo.BaseURL, &repo.Name, &repo.URL, &repo.Owner,
			&repo.RepoName, &repo.LocalPath, &repo.LastSyncedAt, &repo.CreatedAt, &repo.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repositoryRepo.List: scan: %w", err)
		}
		repos = append(repos, &repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repositoryRepo.List: rows: %w", err)
	}

	return repos, nil
}

func (r *RepositoryRepo) Update(ctx context.Context, repo *domain.Repository) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE repositories SET platform = $1, base_url = $2, name = $3, url = $4,
		        owner = $5, repo_name = $6, local_path = $7, last_synced_at = $8, updated_at = now()
		 WHERE id = $9`,
		repo.Platform, repo.BaseURL, repo.Name, repo.URL,
		repo.Owner, repo.RepoName, repo.LocalPath, repo.LastSyncedAt,
		repo.ID,
	)
	if err != nil {
		return fmt.Errorf("repositoryRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repositoryRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *RepositoryRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM repositories WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("repositoryRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repositoryRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
