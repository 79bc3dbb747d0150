package v1

import (
	"context"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/stream"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Jobs() domain.JobRepository
	Repositories() domain.RepositoryStore
	Settings() domain.SettingsStore
}

// JobDispatcher abstracts job lifecycle operations for handler testing.
// *dispatch.Dispatcher satisfies this interface.
type JobDispatcher interface {
	StartJob(ctx context.Context, repositoryID int64, issueNumber int) (*domain.Job, error)
	CancelJob(ctx context.Context, jobID int64) error
}

// StatusSource abstracts the adaptive status poller for handler testing.
// *stream.Reconciler satisfies this interface.
type StatusSource interface {
	MonitorStatus(ctx context.Context, jobID int64) (stream.StatusView, error)
}

// StreamMonitors abstracts live stream session lookup for handler
// testing. *stream.Manager satisfies this interface.
type StreamMonitors interface {
	Get(jobID int64) (*stream.Monitor, bool)
}
