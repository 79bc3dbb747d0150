package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/jobexec"
	"github.com/gosuda/agentdesk/internal/notify"
	"github.com/gosuda/agentdesk/internal/stream"
)

// ExecClient is the job-execution backend surface the dispatcher needs.
type ExecClient interface {
	Enqueue(ctx context.Context, req jobexec.WorkflowRequest) (string, error)
	Cancel(ctx context.Context, execJobID string) error
}

// Reconciler keeps persisted job status in step with stream outcomes.
type Reconciler interface {
	Watch(ctx context.Context, jobID int64)
	ApplyResult(ctx context.Context, jobID int64, result *jobexec.FinalResult, errMsg string) error
	ForceRefresh(ctx context.Context, jobID int64)
}

// Monitors opens stream sessions.
type Monitors interface {
	Open(ctx context.Context, jobID int64, execJobID string, opts stream.Options) (*stream.Monitor, error)
}

// workflowInput is the payload handed to the coding-agent workflow.
type workflowInput struct {
	Platform         domain.Platform `json:"platform"`
	BaseURL          string          `json:"base_url"`
	Owner            string          `json:"owner"`
	Repo             string          `json:"repo"`
	IssueNumber      int             `json:"issue_number"`
	BaseBranch       string          `json:"base_branch"`
	WorktreeBasePath string          `json:"worktree_base_path"`
	LocalPath        *string         `json:"local_path,omitempty"`
}

// Dispatcher starts and cancels coding-agent jobs: it enqueues the
// workflow on the execution backend, persists the job record, and wires
// the stream session whose outcome flows back through the reconciler.
type Dispatcher struct {
	jobs       domain.JobRepository
	repos      domain.RepositoryStore
	settings   domain.SettingsStore
	exec       ExecClient
	monitors   Monitors
	reconciler Reconciler
	pub        stream.Publisher
	channelFor stream.StatusChannelFunc
	notifier   *notify.Notifier

	workflowURL string
	maxChunks   int

	// ctx outlives individual requests so monitors and pollers keep
	// running after the HTTP request that started the job returns.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	jobs domain.JobRepository,
	repos domain.RepositoryStore,
	settings domain.SettingsStore,
	exec ExecClient,
	monitors Monitors,
	reconciler Reconciler,
	pub stream.Publisher,
	channelFor stream.StatusChannelFunc,
	notifier *notify.Notifier,
	workflowURL string,
	maxChunks int,
) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:        jobs,
		repos:       repos,
		settings:    settings,
		exec:        exec,
		monitors:    monitors,
		reconciler:  reconciler,
		pub:         pub,
		channelFor:  channelFor,
		notifier:    notifier,
		workflowURL: workflowURL,
		maxChunks:   maxChunks,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// StartJob enqueues a workflow run for an issue and begins tracking it.
func (d *Dispatcher) StartJob(ctx context.Context, repositoryID int64, issueNumber int) (*domain.Job, error) {
	repo, err := d.repos.GetByID(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("dispatch.Dispatcher.StartJob: %w", err)
	}

	cfg, err := d.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch.Dispatcher.StartJob: %w", err)
	}

	input, err := json.Marshal(workflowInput{
		Platform:         repo.Platform,
		BaseURL:          repo.BaseURL,
		Owner:            repo.Owner,
		Repo:             repo.RepoName,
		IssueNumber:      issueNumber,
		BaseBranch:       cfg.DefaultBaseBranch,
		WorktreeBasePath: cfg.WorktreeBasePath,
		LocalPath:        repo.LocalPath,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch.Dispatcher.StartJob: marshal input: %w", err)
	}

	execID, err := d.exec.Enqueue(ctx, jobexec.WorkflowRequest{
		WorkflowURL:  d.workflowURL,
		Input:        string(input),
		TimeoutMilli: int64(cfg.AgentTimeoutMinutes) * time.Minute.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch.Dispatcher.StartJob: %w", err)
	}

	job := &domain.Job{
		RepositoryID: repositoryID,
		IssueNumber:  issueNumber,
		ExecJobID:    execID,
		Status:       domain.JobStatusPending,
	}
	if err := d.jobs.Create(ctx, job); err != nil {
		// The backend run is already live; cancel it rather than leaking
		// an untracked worker.
		if cancelErr := d.exec.Cancel(ctx, execID); cancelErr != nil {
			log.Error().Err(cancelErr).Str("exec_job_id", execID).Msg("dispatch: failed to cancel orphaned run")
		}
		return nil, fmt.Errorf("dispatch.Dispatcher.StartJob: %w", err)
	}

	d.track(job, repo)

	return job, nil
}

// track starts the adaptive status poller and the stream session for a
// persisted job.
func (d *Dispatcher) track(job *domain.Job, repo *domain.Repository) {
	d.reconciler.Watch(d.ctx, job.ID)

	_, err := d.monitors.Open(d.ctx, job.ID, job.ExecJobID, stream.Options{
		MaxChunks: d.maxChunks,
		OnEvent: func(evt jobexec.Event) {
			d.relayEvent(job.ID, evt)
		},
		OnComplete: func(result *jobexec.FinalResult) {
			d.finish(job, repo, result, "")
		},
		OnError: func(message string) {
			d.finish(job, repo, nil, message)
		},
	})
	if err != nil {
		log.Error().Err(err).Int64("job_id", job.ID).Msg("dispatch: failed to open stream session")
	}
}

// Resume re-attaches stream sessions and pollers for jobs that were
// still active when the process last stopped.
func (d *Dispatcher) Resume(ctx context.Context) error {
	jobs, err := d.jobs.List(ctx, domain.JobFilter{})
	if err != nil {
		return fmt.Errorf("dispatch.Dispatcher.Resume: %w", err)
	}

	resumed := 0
	for _, job := range jobs {
		if !job.Status.IsActive() {
			continue
		}
		repo, err := d.repos.GetByID(ctx, job.RepositoryID)
		if err != nil {
			log.Error().Err(err).Int64("job_id", job.ID).Msg("dispatch: cannot resume job, repository lookup failed")
			continue
		}
		d.track(job, repo)
		resumed++
	}

	if resumed > 0 {
		log.Info().Int("count", resumed).Msg("dispatch: resumed active jobs")
	}

	return nil
}

// CancelJob asks the backend to stop a job and records the cancellation.
// The local stream session stays open: the backend acknowledges on the
// event feed with a terminal event.
func (d *Dispatcher) CancelJob(ctx context.Context, jobID int64) error {
	job, err := d.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("dispatch.Dispatcher.CancelJob: %w", err)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("dispatch.Dispatcher.CancelJob: job %d already %s: %w", jobID, job.Status, domain.ErrInvalidTransition)
	}

	if err := d.exec.Cancel(ctx, job.ExecJobID); err != nil {
		return fmt.Errorf("dispatch.Dispatcher.CancelJob: %w", err)
	}

	if err := d.jobs.UpdateStatus(ctx, jobID, domain.JobStatusCancelled); err != nil {
		return fmt.Errorf("dispatch.Dispatcher.CancelJob: %w", err)
	}

	d.reconciler.ForceRefresh(ctx, jobID)

	return nil
}

// finish routes a terminal stream outcome into the persisted record and
// announces it. An outcome the record can no longer accept, such as the
// backend's terminal event after a cancel, is dropped silently.
func (d *Dispatcher) finish(job *domain.Job, repo *domain.Repository, result *jobexec.FinalResult, errMsg string) {
	if err := d.reconciler.ApplyResult(d.ctx, job.ID, result, errMsg); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Debug().Err(err).Int64("job_id", job.ID).Msg("dispatch: stream outcome arrived after job settled")
			return
		}
		log.Error().Err(err).Int64("job_id", job.ID).Msg("dispatch: failed to persist stream outcome")
	}

	if errMsg != "" {
		d.notifier.JobFailed(d.ctx, job, repo, errMsg)
		return
	}
	if result != nil && result.Status == jobexec.ResultFailed {
		d.notifier.JobFailed(d.ctx, job, repo, result.Error)
		return
	}
	d.notifier.JobCompleted(d.ctx, job, repo, result)
}

// relayEvent republishes a feed event so websocket consumers can follow
// the stream without their own backend subscription.
func (d *Dispatcher) relayEvent(jobID int64, evt jobexec.Event) {
	if d.pub == nil || d.channelFor == nil {
		return
	}

	payload, err := jobexec.EncodeFrame(evt)
	if err != nil {
		log.Error().Err(err).Int64("job_id", jobID).Msg("dispatch: failed to encode stream event")
		return
	}

	if err := d.pub.Publish(d.ctx, d.channelFor(jobID), payload); err != nil {
		log.Error().Err(err).Int64("job_id", jobID).Msg("dispatch: failed to publish stream event")
	}
}

// Shutdown stops event relaying and outcome handling for all jobs.
func (d *Dispatcher) Shutdown() {
	d.cancel()
}
