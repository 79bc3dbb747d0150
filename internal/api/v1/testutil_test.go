package v1_test

import (
	"context"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/stream"
)

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	jobs         domain.JobRepository
	repositories domain.RepositoryStore
	settings     domain.SettingsStore
}

func (m *mockDataStore) Jobs() domain.JobRepository           { return m.jobs }
func (m *mockDataStore) Repositories() domain.RepositoryStore { return m.repositories }
func (m *mockDataStore) Settings() domain.SettingsStore       { return m.settings }

// ---------------------------------------------------------------------------
// Mock JobRepository
// ---------------------------------------------------------------------------

type mockJobRepo struct {
	createFunc             func(ctx context.Context, j *domain.Job) error
	getByIDFunc            func(ctx context.Context, id int64) (*domain.Job, error)
	getByExecIDFunc        func(ctx context.Context, execJobID string) (*domain.Job, error)
	listFunc               func(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error)
	updateStatusFunc       func(ctx context.Context, id int64, status domain.JobStatus) error
	setPRCreatedFunc       func(ctx context.Context, id int64, prNumber int) error
	setFailedFunc          func(ctx context.Context, id int64, errMsg string) error
	deleteByRepositoryFunc func(ctx context.Context, repositoryID int64) error
}

func (m *mockJobRepo) Create(ctx context.Context, j *domain.Job) error {
	return m.createFunc(ctx, j)
}

func (m *mockJobRepo) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockJobRepo) GetByExecID(ctx context.Context, execJobID string) (*domain.Job, error) {
	return m.getByExecIDFunc(ctx, execJobID)
}

func (m *mockJobRepo) List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	return m.listFunc(ctx, filter)
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, id int64, status domain.JobStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockJobRepo) SetPRCreated(ctx context.Context, id int64, prNumber int) error {
	return m.setPRCreatedFunc(ctx, id, prNumber)
}

func (m *mockJobRepo) SetFailed(ctx context.Context, id int64, errMsg string) error {
	return m.setFailedFunc(ctx, id, errMsg)
}

func (m *mockJobRepo) DeleteByRepository(ctx context.Context, repositoryID int64) error {
	return m.deleteByRepositoryFunc(ctx, repositoryID)
}

// ---------------------------------------------------------------------------
// Mock RepositoryStore
// ---------------------------------------------------------------------------

type mockRepositoryStore struct {
	createFunc  func(ctx context.Context, r *domain.Repository) error
	getByIDFunc func(ctx context.Context, id int64) (*domain.Repository, error)
	listFunc    func(ctx context.Context) ([]*domain.Repository, error)
	updateFunc  func(ctx context.Context, r *domain.Repository) error
	deleteFunc  func(ctx context.Context, id int64) error
}

func (m *mockRepositoryStore) Create(ctx context.Context, r *domain.Repository) error {
	return m.createFunc(ctx, r)
}

func (m *mockRepositoryStore) GetByID(ctx context.Context, id int64) (*domain.Repository, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepositoryStore) List(ctx context.Context) ([]*domain.Repository, error) {
	return m.listFunc(ctx)
}

func (m *mockRepositoryStore) Update(ctx context.Context, r *domain.Repository) error {
	return m.updateFunc(ctx, r)
}

func (m *mockRepositoryStore) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock SettingsStore
// ---------------------------------------------------------------------------

type mockSettingsStore struct {
	getFunc    func(ctx context.Context) (*domain.Settings, error)
	updateFunc func(ctx context.Context, s *domain.Settings) error
}

func (m *mockSettingsStore) Get(ctx context.Context) (*domain.Settings, error) {
	return m.getFunc(ctx)
}

func (m *mockSettingsStore) Update(ctx context.Context, s *domain.Settings) error {
	return m.updateFunc(ctx, s)
}

// ---------------------------------------------------------------------------
// Mock JobDispatcher
// ---------------------------------------------------------------------------

type mockDispatcher struct {
	startJobFunc  func(ctx context.Context, repositoryID int64, issueNumber int) (*domain.Job, error)
	cancelJobFunc func(ctx context.Context, jobID int64) error
}

func (m *mockDispatcher) StartJob(ctx context.Context, repositoryID int64, issueNumber int) (*domain.Job, error) {
	return m.startJobFunc(ctx, repositoryID, issueNumber)
}

func (m *mockDispatcher) CancelJob(ctx context.Context, jobID int64) error {
	return m.cancelJobFunc(ctx, jobID)
}

// ---------------------------------------------------------------------------
// Mock StatusSource / StreamMonitors
// ---------------------------------------------------------------------------

type mockStatusSource struct {
	monitorStatusFunc func(ctx context.Context, jobID int64) (stream.StatusView, error)
}

func (m *mockStatusSource) MonitorStatus(ctx context.Context, jobID int64) (stream.StatusView, error) {
	return m.monitorStatusFunc(ctx, jobID)
}

type mockStreamMonitors struct {
	getFunc func(jobID int64) (*stream.Monitor, bool)
}

func (m *mockStreamMonitors) Get(jobID int64) (*stream.Monitor, bool) {
	if m.getFunc == nil {
		return nil, false
	}
	return m.getFunc(jobID)
}
