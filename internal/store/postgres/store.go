package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentdesk/internal/domain"
)

type Store struct {
	pool         *pgxpool.Pool
	jobs         *JobRepo
	repositories *RepositoryRepo
	settings     *SettingsRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:         pool,
		jobs:         NewJobRepo(pool),
		repositories: NewRepositoryRepo(pool),
		settings:     NewSettingsRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Jobs() domain.JobRepository           { return s.jobs }
func (s *Store) Repositories() domain.RepositoryStore { return s.repositories }
func (s *Store) Settings() domain.SettingsStore       { return s.settings }
