package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/jobexec"
	"github.com/gosuda/agentdesk/internal/stream"
)

type ListJobsInput struct {
	RepositoryID int64  `query:"repository_id" doc:"Filter by repository ID"`
	Status       string `query:"status" doc:"Filter by job status"`
}

type ListJobsOutput struct {
	Body []*domain.Job
}

type GetJobInput struct {
	ID int64 `path:"id" doc:"Job ID"`
}

type GetJobOutput struct {
	Body *domain.Job
}

type StartJobInput struct {
	Body struct {
		RepositoryID int64 `json:"repository_id" doc:"Repository ID"`
		IssueNumber  int   `json:"issue_number" minimum:"1" doc:"Issue number to work on"`
	}
}

type StartJobOutput struct {
	Body *domain.Job
}

type CancelJobInput struct {
	ID int64 `path:"id" doc:"Job ID"`
}

type CancelJobOutput struct {
	Body *domain.Job
}

type JobMonitorInput struct {
	ID int64 `path:"id" doc:"Job ID"`
}

// JobMonitorView tells a polling client the current status and how long
// to wait before asking again. A zero interval means the job is settled
// and polling can stop.
type JobMonitorView struct {
	Status            domain.JobStatus `json:"status"`
	RefreshIntervalMS int64            `json:"refresh_interval_ms"`
}

type JobMonitorOutput struct {
	Body JobMonitorView
}

type JobStreamSnapshotInput struct {
	ID int64 `path:"id" doc:"Job ID"`
}

// JobStreamSnapshot is the buffered stream state for late-joining
// viewers: everything decoded so far plus the terminal outcome if the
// session already ended.
type JobStreamSnapshot struct {
	State  string               `json:"state"`
	Text   string               `json:"text"`
	Chunks int                  `json:"chunks"`
	Result *jobexec.FinalResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type JobStreamSnapshotOutput struct {
	Body JobStreamSnapshot
}

func RegisterJobRoutes(api huma.API, store DataStore, dispatcher JobDispatcher, status StatusSource, monitors StreamMonitors) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
		jobs, err := store.Jobs().List(ctx, domain.JobFilter{
			RepositoryID: input.RepositoryID,
			Status:       domain.JobStatus(input.Status),
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list jobs", err)
		}

		return &ListJobsOutput{Body: jobs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get a job by ID",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
		job, err := store.Jobs().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("job not found")
			}
			return nil, huma.Error500InternalServerError("failed to get job", err)
		}

		return &GetJobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-job",
		Method:      http.MethodPost,
		Path:        "/jobs",
		Summary:     "Start a coding-agent job for an issue",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *StartJobInput) (*StartJobOutput, error) {
		job, err := dispatcher.StartJob(ctx, input.Body.RepositoryID, input.Body.IssueNumber)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("repository not found")
			}
			return nil, huma.Error500InternalServerError("failed to start job", err)
		}

		return &StartJobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/cancel",
		Summary:     "Cancel a running job",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
		err := dispatcher.CancelJob(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("job not found")
			}
			if errors.Is(err, domain.ErrInvalidTransition) {
				return nil, huma.Error409Conflict("job is already in a terminal state")
			}
			return nil, huma.Error500InternalServerError("failed to cancel job", err)
		}

		job, err := store.Jobs().GetByID(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get job", err)
		}

		return &CancelJobOutput{Body: job}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-monitor",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/monitor",
		Summary:     "Get job status and the recommended poll interval",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *JobMonitorInput) (*JobMonitorOutput, error) {
		view, err := status.MonitorStatus(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("job not found")
			}
			return nil, huma.Error500InternalServerError("failed to get job status", err)
		}

		return &JobMonitorOutput{Body: JobMonitorView{
			Status:            view.Status,
			RefreshIntervalMS: view.RefreshInterval.Milliseconds(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job-stream",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/stream",
		Summary:     "Get the buffered stream snapshot for a job",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *JobStreamSnapshotInput) (*JobStreamSnapshotOutput, error) {
		mon, ok := monitors.Get(input.ID)
		if !ok {
			// No live session; the job either never streamed in this
			// process or its session was released.
			if _, err := store.Jobs().GetByID(ctx, input.ID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, huma.Error404NotFound("job not found")
				}
				return nil, huma.Error500InternalServerError("failed to get job", err)
			}
			return &JobStreamSnapshotOutput{Body: JobStreamSnapshot{State: string(stream.StateIdle)}}, nil
		}

		view := mon.Snapshot()

		return &JobStreamSnapshotOutput{Body: JobStreamSnapshot{
			State:  string(view.State),
			Text:   view.Text,
			Chunks: view.Chunks,
			Result: view.Result,
			Error:  view.Err,
		}}, nil
	})
}
