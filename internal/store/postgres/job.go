package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/agentdesk/internal/domain"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *domain.Job) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO jobs (repository_id, issue_number, exec_job_id, status, worktree_path, branch_name)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		j.RepositoryID, j.IssueNumber, j.ExecJobID, j.Status, j.WorktreePath, j.BranchName,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("jobRepo.Create: %w", err)
	}

	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	var j domain.Job

	err := r.pool.QueryRow(ctx,
		`SELECT id, repository_id, issue_number, exec_job_id, status, worktree_path,
		        branch_name, pr_number, error_message, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(
		&j.ID, &j.RepositoryID, &j.IssueNumber, &j.ExecJobID, &j.Status, &j.WorktreePath,
		&j.BranchName, &j.PRNumber, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("jobRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}

	return &j, nil
}

func (r *JobRepo) GetByExecID(ctx context.Context, execJobID string) (*domain.Job, error) {
	var j domain.Job

	err := r.pool.QueryRow(ctx,
		`SELECT id, repository_id, issue_number, exec_job_id, status, worktree_path,
		        branch_name, pr_number, error_message, created_at, updated_at
		 FROM jobs WHERE exec_job_id = $1`,
		execJobID,
	).Scan(
		&j.ID, &j.RepositoryID, &j.IssueNumber, &j.ExecJobID, &j.Status, &j.WorktreePath,
		&j.BranchName, &j.PRNumber, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("jobRepo.GetByExecID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("jobRepo.GetByExecID: %w", err)
	}

	return &j, nil
}

func (r *JobRepo) List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	query := `SELECT id, repository_id, issue_number, exec_job_id, status, worktree_path,
	                 branch_name, pr_number, error_message, created_at, updated_at
	          FROM jobs WHERE 1=1`
	args := []any{}

	if filter.RepositoryID != 0 {
		args = append(args, filter.RepositoryID)
		query += fmt.Sprintf(" AND repository_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC LIMIT 1000"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.List: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows, "jobRepo.List")
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id int64, status domain.JobStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("jobRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("jobRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *JobRepo) SetPRCreated(ctx context.Context, id int64, prNumber int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, pr_number = $2, updated_at = now() WHERE id = $3`,
		domain.JobStatusPrCreated, prNumber, id,
	)
	if err != nil {
		return fmt.Errorf("jobRepo.SetPRCreated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("jobRepo.SetPRCreated: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *JobRepo) SetFailed(ctx context.Context, id int64, errMsg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		domain.JobStatusFailed, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("jobRepo.SetFailed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("jobRepo.SetFailed: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *JobRepo) DeleteByRepository(ctx context.Context, repositoryID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM jobs WHERE repository_id = $1`,
		repositoryID,
	)
	if err != nil {
		return fmt.Errorf("jobRepo.DeleteByRepository: %w", err)
	}

	return nil
}

func scanJobs(rows pgx.Rows, caller string) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(
			&j.ID, &j.RepositoryID, &j.IssueNumber, &j.ExecJobID, &j.Status, &j.WorktreePath,
			&j.BranchName, &j.PRNumber, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return jobs, nil
}
