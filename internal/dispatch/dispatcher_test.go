package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/jobexec"
	"github.com/gosuda/agentdesk/internal/notify"
	"github.com/gosuda/agentdesk/internal/stream"
)

type mockJobRepo struct {
	CreateFn       func(ctx context.Context, j *domain.Job) error
	GetByIDFn      func(ctx context.Context, id int64) (*domain.Job, error)
	ListFn         func(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error)
	UpdateStatusFn func(ctx context.Context, id int64, status domain.JobStatus) error
}

func (m *mockJobRepo) Create(ctx context.Context, j *domain.Job) error { return m.CreateFn(ctx, j) }
func (m *mockJobRepo) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockJobRepo) GetByExecID(context.Context, string) (*domain.Job, error) {
	return nil, domain.ErrNotFound
}
func (m *mockJobRepo) List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	return m.ListFn(ctx, filter)
}
func (m *mockJobRepo) UpdateStatus(ctx context.Context, id int64, status domain.JobStatus) error {
	return m.UpdateStatusFn(ctx, id, status)
}
func (m *mockJobRepo) SetPRCreated(context.Context, int64, int) error  { return nil }
func (m *mockJobRepo) SetFailed(context.Context, int64, string) error  { return nil }
func (m *mockJobRepo) DeleteByRepository(context.Context, int64) error { return nil }

type mockRepoStore struct {
	GetByIDFn func(ctx context.Context, id int64) (*domain.Repository, error)
}

func (m *mockRepoStore) Create(context.Context, *domain.Repository) error { return nil }
func (m *mockRepoStore) GetByID(ctx context.Context, id int64) (*domain.Repository, error) {
	return m.GetByIDFn(ctx, id)
}
func (m *mockRepoStore) List(context.Context) ([]*domain.Repository, error) { return nil, nil }
func (m *mockRepoStore) Update(context.Context, *domain.Repository) error   { return nil }
func (m *mockRepoStore) Delete(context.Context, int64) error                { return nil }

type mockSettingsStore struct{}

func (m *mockSettingsStore) Get(context.Context) (*domain.Settings, error) {
	return &domain.Settings{
		WorktreeBasePath:    "/tmp/worktrees",
		DefaultBaseBranch:   "main",
		AgentTimeoutMinutes: 30,
	}, nil
}
func (m *mockSettingsStore) Update(context.Context, *domain.Settings) error { return nil }

type mockExec struct {
	mu        sync.Mutex
	enqueued  []jobexec.WorkflowRequest
	cancelled []string

	EnqueueFn func(ctx context.Context, req jobexec.WorkflowRequest) (string, error)
	CancelFn  func(ctx context.Context, execJobID string) error
}

func (m *mockExec) Enqueue(ctx context.Context, req jobexec.WorkflowRequest) (string, error) {
	m.mu.Lock()
	m.enqueued = append(m.enqueued, req)
	m.mu.Unlock()
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, req)
	}
	return "exec-1", nil
}

func (m *mockExec) Cancel(ctx context.Context, execJobID string) error {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, execJobID)
	m.mu.Unlock()
	if m.CancelFn != nil {
		return m.CancelFn(ctx, execJobID)
	}
	return nil
}

type mockReconciler struct {
	mu        sync.Mutex
	watched   []int64
	applied   []appliedResult
	refreshed []int64

	applyErr error
}

type appliedResult struct {
	jobID  int64
	result *jobexec.FinalResult
	errMsg string
}

func (m *mockReconciler) Watch(_ context.Context, jobID int64) {
	m.mu.Lock()
	m.watched = append(m.watched, jobID)
	m.mu.Unlock()
}

func (m *mockReconciler) ApplyResult(_ context.Context, jobID int64, result *jobexec.FinalResult, errMsg string) error {
	m.mu.Lock()
	m.applied = append(m.applied, appliedResult{jobID: jobID, result: result, errMsg: errMsg})
	m.mu.Unlock()
	return m.applyErr
}

func (m *mockReconciler) ForceRefresh(_ context.Context, jobID int64) {
	m.mu.Lock()
	m.refreshed = append(m.refreshed, jobID)
	m.mu.Unlock()
}

type openedMonitor struct {
	jobID     int64
	execJobID string
	opts      stream.Options
}

type mockMonitors struct {
	mu     sync.Mutex
	opened []openedMonitor
}

func (m *mockMonitors) Open(_ context.Context, jobID int64, execJobID string, opts stream.Options) (*stream.Monitor, error) {
	m.mu.Lock()
	m.opened = append(m.opened, openedMonitor{jobID: jobID, execJobID: execJobID, opts: opts})
	m.mu.Unlock()
	return nil, nil
}

type mockSlackAPI struct {
	mu    sync.Mutex
	posts int
}

func (m *mockSlackAPI) PostMessageContext(context.Context, string, ...slacklib.MsgOption) (string, string, error) {
	m.mu.Lock()
	m.posts++
	m.mu.Unlock()
	return "C1", "1.2", nil
}

type fixture struct {
	dispatcher *Dispatcher
	jobs       *mockJobRepo
	exec       *mockExec
	reconciler *mockReconciler
	monitors   *mockMonitors
	slack      *mockSlackAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		exec:       &mockExec{},
		reconciler: &mockReconciler{},
		monitors:   &mockMonitors{},
		slack:      &mockSlackAPI{},
	}

	f.jobs = &mockJobRepo{
		CreateFn: func(_ context.Context, j *domain.Job) error {
			j.ID = 100
			return nil
		},
	}

	repos := &mockRepoStore{
		GetByIDFn: func(_ context.Context, id int64) (*domain.Repository, error) {
			return &domain.Repository{
				ID:       id,
				Platform: domain.PlatformGitHub,
				BaseURL:  "https://github.com",
				Name:     "widgets",
				Owner:    "acme",
				RepoName: "widgets",
			}, nil
		},
	}

	f.dispatcher = New(
		f.jobs, repos, &mockSettingsStore{},
		f.exec, f.monitors, f.reconciler,
		nil, nil,
		notify.NewWithAPI(f.slack, "C1"),
		"https://workflows.example.com/coding-agent.yaml",
		0,
	)
	t.Cleanup(f.dispatcher.Shutdown)

	return f
}

func TestDispatcher_StartJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	job, err := f.dispatcher.StartJob(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, int64(100), job.ID)
	assert.Equal(t, "exec-1", job.ExecJobID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 5, job.IssueNumber)

	require.Len(t, f.exec.enqueued, 1)
	req := f.exec.enqueued[0]
	assert.Equal(t, "https://workflows.example.com/coding-agent.yaml", req.WorkflowURL)
	assert.Equal(t, int64(30*60*1000), req.TimeoutMilli)

	var input workflowInput
	require.NoError(t, json.Unmarshal([]byte(req.Input), &input))
	assert.Equal(t, domain.PlatformGitHub, input.Platform)
	assert.Equal(t, "acme", input.Owner)
	assert.Equal(t, "widgets", input.Repo)
	assert.Equal(t, 5, input.IssueNumber)
	assert.Equal(t, "main", input.BaseBranch)

	assert.Equal(t, []int64{100}, f.reconciler.watched)
	require.Len(t, f.monitors.opened, 1)
	assert.Equal(t, int64(100), f.monitors.opened[0].jobID)
	assert.Equal(t, "exec-1", f.monitors.opened[0].execJobID)
}

func TestDispatcher_StartJobEnqueueFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.exec.EnqueueFn = func(context.Context, jobexec.WorkflowRequest) (string, error) {
		return "", errors.New("backend unreachable")
	}

	_, err := f.dispatcher.StartJob(context.Background(), 1, 5)
	assert.Error(t, err)
	assert.Empty(t, f.reconciler.watched)
	assert.Empty(t, f.monitors.opened)
}

func TestDispatcher_StartJobPersistFailureCancelsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.jobs.CreateFn = func(context.Context, *domain.Job) error {
		return errors.New("db down")
	}

	_, err := f.dispatcher.StartJob(context.Background(), 1, 5)
	assert.Error(t, err)
	assert.Equal(t, []string{"exec-1"}, f.exec.cancelled, "orphaned backend run must be cancelled")
	assert.Empty(t, f.reconciler.watched)
}

func TestDispatcher_StreamOutcomeReachesReconcilerAndSlack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.dispatcher.StartJob(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, f.monitors.opened, 1)

	opts := f.monitors.opened[0].opts
	require.NotNil(t, opts.OnComplete)
	require.NotNil(t, opts.OnError)

	result := &jobexec.FinalResult{Status: jobexec.ResultSuccess, PRNumber: intp(12)}
	opts.OnComplete(result)

	require.Len(t, f.reconciler.applied, 1)
	assert.Equal(t, int64(100), f.reconciler.applied[0].jobID)
	assert.Same(t, result, f.reconciler.applied[0].result)
	assert.Equal(t, 1, f.slack.posts)

	opts.OnError("agent crashed")

	require.Len(t, f.reconciler.applied, 2)
	assert.Equal(t, "agent crashed", f.reconciler.applied[1].errMsg)
	assert.Equal(t, 2, f.slack.posts)
}

func TestDispatcher_OutcomeAfterCancelIsNotAnnounced(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.reconciler.applyErr = domain.ErrInvalidTransition

	_, err := f.dispatcher.StartJob(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, f.monitors.opened, 1)

	// The backend acknowledges a cancel with a terminal event on the
	// still-open feed; the record already settled, so no notification.
	f.monitors.opened[0].opts.OnError("stream closed before completion")

	require.Len(t, f.reconciler.applied, 1)
	assert.Zero(t, f.slack.posts)
}

func TestDispatcher_CancelJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var updated []domain.JobStatus
	f.jobs.GetByIDFn = func(_ context.Context, id int64) (*domain.Job, error) {
		return &domain.Job{ID: id, ExecJobID: "exec-9", Status: domain.JobStatusRunningAgent}, nil
	}
	f.jobs.UpdateStatusFn = func(_ context.Context, _ int64, status domain.JobStatus) error {
		updated = append(updated, status)
		return nil
	}

	require.NoError(t, f.dispatcher.CancelJob(context.Background(), 100))

	assert.Equal(t, []string{"exec-9"}, f.exec.cancelled)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusCancelled}, updated)
	assert.Equal(t, []int64{100}, f.reconciler.refreshed)
}

func TestDispatcher_CancelTerminalJobRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.jobs.GetByIDFn = func(_ context.Context, id int64) (*domain.Job, error) {
		return &domain.Job{ID: id, ExecJobID: "exec-9", Status: domain.JobStatusCompleted}, nil
	}

	err := f.dispatcher.CancelJob(context.Background(), 100)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Empty(t, f.exec.cancelled)
}

func TestDispatcher_ResumeReattachesActiveJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.jobs.ListFn = func(context.Context, domain.JobFilter) ([]*domain.Job, error) {
		return []*domain.Job{
			{ID: 1, RepositoryID: 1, ExecJobID: "exec-a", Status: domain.JobStatusRunningAgent},
			{ID: 2, RepositoryID: 1, ExecJobID: "exec-b", Status: domain.JobStatusCompleted},
			{ID: 3, RepositoryID: 1, ExecJobID: "exec-c", Status: domain.JobStatusPending},
		}, nil
	}

	require.NoError(t, f.dispatcher.Resume(context.Background()))

	assert.Equal(t, []int64{1, 3}, f.reconciler.watched)
	require.Len(t, f.monitors.opened, 2)
	assert.Equal(t, "exec-a", f.monitors.opened[0].execJobID)
	assert.Equal(t, "exec-c", f.monitors.opened[1].execJobID)
}

func intp(n int) *int { return &n }
