package domain

import (
	"context"
	"time"
)

type JobStatus string

const (
	JobStatusPending            JobStatus = "Pending"
	JobStatusPreparingWorkspace JobStatus = "PreparingWorkspace"
	JobStatusFetchingIssue      JobStatus = "FetchingIssue"
	JobStatusRunningAgent       JobStatus = "RunningAgent"
	JobStatusCreatingPR         JobStatus = "CreatingPR"
	JobStatusPrCreated          JobStatus = "PrCreated"
	JobStatusMerged             JobStatus = "Merged"
	JobStatusCompleted          JobStatus = "Completed"
	JobStatusFailed             JobStatus = "Failed"
	JobStatusCancelled          JobStatus = "Cancelled"
)

// IsActive reports whether a job in this status should still be polled
// and streamed. Unrecognized values are treated as active so a newer
// status added by the execution backend keeps polling instead of
// silently going stale.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobStatusPrCreated, JobStatusMerged, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return false
	case JobStatusPending, JobStatusPreparingWorkspace, JobStatusFetchingIssue,
		JobStatusRunningAgent, JobStatusCreatingPR:
		return true
	default:
		return true
	}
}

// IsTerminal reports whether no further status changes are expected.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusMerged, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// statusOrder ranks the forward progression. Failed and Cancelled are
// deliberately absent: nothing advances out of them.
var statusOrder = map[JobStatus]int{
	JobStatusPending:            0,
	JobStatusPreparingWorkspace: 1,
	JobStatusFetchingIssue:      2,
	JobStatusRunningAgent:       3,
	JobStatusCreatingPR:         4,
	JobStatusPrCreated:          5,
	JobStatusMerged:             6,
	JobStatusCompleted:          7,
}

// ValidTransition checks if a job status transition is allowed. The
// progression is forward-only: Pending -> PreparingWorkspace ->
// FetchingIssue -> RunningAgent -> CreatingPR -> PrCreated -> Merged ->
// Completed, where steps may be skipped, since an outcome often arrives
// before any intermediate status was persisted. Failed and Cancelled
// are reachable from any non-terminal state and never change again.
func (s JobStatus) ValidTransition(to JobStatus) bool {
	if to == JobStatusFailed || to == JobStatusCancelled {
		return !s.IsTerminal()
	}

	from, ok := statusOrder[s]
	next, ok2 := statusOrder[to]
	if !ok || !ok2 {
		return false
	}
	return next > from
}

// Job is one automated coding-agent execution tied to a repository issue.
// The persisted status field is distinct from the transient stream
// lifecycle tracked by the stream package.
type Job struct {
	ID           int64     `json:"id"`
	RepositoryID int64     `json:"repository_id"`
	IssueNumber  int       `json:"issue_number"`
	ExecJobID    string    `json:"exec_job_id"`
	Status       JobStatus `json:"status"`
	WorktreePath *string   `json:"worktree_path,omitempty"`
	BranchName   *string   `json:"branch_name,omitempty"`
	PRNumber     *int      `json:"pr_number,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobFilter narrows List results. Zero values mean "no filter".
type JobFilter struct {
	RepositoryID int64
	Status       JobStatus
}

type JobRepository interface {
	Create(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id int64) (*Job, error)
	GetByExecID(ctx context.Context, execJobID string) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]*Job, error)
	UpdateStatus(ctx context.Context, id int64, status JobStatus) error
	SetPRCreated(ctx context.Context, id int64, prNumber int) error
	SetFailed(ctx context.Context, id int64, errMsg string) error
	DeleteByRepository(ctx context.Context, repositoryID int64) error
}
