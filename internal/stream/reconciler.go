package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/jobexec"
)

const (
	// DefaultActiveInterval is the poll cadence while a job is believed
	// active.
	DefaultActiveInterval = 2 * time.Second

	// DefaultIdleInterval is the cadence for jobs whose status is not
	// yet known to be terminal but is no longer streaming.
	DefaultIdleInterval = 30 * time.Second
)

// Publisher fans a refreshed status out to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// StatusChannelFunc names the pub/sub channel for a job's status
// updates.
type StatusChannelFunc func(jobID int64) string

// StatusView is the adaptive-poll handle consumed by list/detail views.
type StatusView struct {
	Status          domain.JobStatus `json:"status"`
	RefreshInterval time.Duration    `json:"refresh_interval"`
}

// Reconciler keeps the pull-based view of persisted job status in step
// with the push-based event feed. It polls each watched job at an
// interval derived from the status classifier, accepts forced
// out-of-band refreshes on terminal stream transitions, and is the
// single writer of persisted status derived from stream outcomes.
type Reconciler struct {
	jobs           domain.JobRepository
	pub            Publisher
	channelFor     StatusChannelFunc
	activeInterval time.Duration
	idleInterval   time.Duration

	mu      sync.Mutex
	pollers map[int64]*poller
}

type poller struct {
	refresh chan struct{}
	cancel  context.CancelFunc
}

// NewReconciler creates a Reconciler. Non-positive intervals fall back
// to the defaults.
func NewReconciler(jobs domain.JobRepository, pub Publisher, channelFor StatusChannelFunc, activeInterval, idleInterval time.Duration) *Reconciler {
	if activeInterval <= 0 {
		activeInterval = DefaultActiveInterval
	}
	if idleInterval <= 0 {
		idleInterval = DefaultIdleInterval
	}
	return &Reconciler{
		jobs:           jobs,
		pub:            pub,
		channelFor:     channelFor,
		activeInterval: activeInterval,
		idleInterval:   idleInterval,
		pollers:        make(map[int64]*poller),
	}
}

// Interval computes the refresh cadence for a job status: short while
// active, disabled (0) once terminal. Unrecognized statuses poll at the
// active cadence (the classifier fails open).
func (r *Reconciler) Interval(status domain.JobStatus) time.Duration {
	if status.IsTerminal() {
		return 0
	}
	if status.IsActive() {
		return r.activeInterval
	}
	return r.idleInterval
}

// Watch starts the adaptive poll loop for a job. Watching an already
// watched job restarts its poller. The loop exits once a terminal
// status has been observed and published, or when ctx is done.
func (r *Reconciler) Watch(ctx context.Context, jobID int64) {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &poller{
		refresh: make(chan struct{}, 1),
		cancel:  cancel,
	}

	r.mu.Lock()
	if prev, ok := r.pollers[jobID]; ok {
		prev.cancel()
	}
	r.pollers[jobID] = p
	r.mu.Unlock()

	go r.poll(pollCtx, jobID, p)
}

// poll fetches and publishes job status until terminal. A failed fetch
// is retried at the previous cadence; terminal states stop the loop, so
// no separate backoff is needed.
func (r *Reconciler) poll(ctx context.Context, jobID int64, p *poller) {
	defer r.forget(jobID, p)

	interval := r.activeInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		status, err := r.refreshOnce(ctx, jobID)
		if err == nil {
			if status.IsTerminal() {
				return
			}
			interval = r.Interval(status)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			return
		case <-p.refresh:
			// Forced out-of-band refresh; loop immediately.
		case <-timer.C:
		}
	}
}

// refreshOnce reads the persisted record and publishes its status.
func (r *Reconciler) refreshOnce(ctx context.Context, jobID int64) (domain.JobStatus, error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		log.Debug().Err(err).Int64("job_id", jobID).Msg("stream: status poll failed, retrying at current cadence")
		return "", err
	}

	r.publishStatus(ctx, job)

	return job.Status, nil
}

func (r *Reconciler) publishStatus(ctx context.Context, job *domain.Job) {
	if r.pub == nil || r.channelFor == nil {
		return
	}

	payload, err := json.Marshal(StatusView{
		Status:          job.Status,
		RefreshInterval: r.Interval(job.Status),
	})
	if err != nil {
		return
	}

	if pubErr := r.pub.Publish(ctx, r.channelFor(job.ID), payload); pubErr != nil {
		log.Error().Err(pubErr).Int64("job_id", job.ID).Msg("stream: failed to publish status refresh")
	}
}

// ForceRefresh schedules an immediate out-of-band poll for a watched
// job, independent of the scheduled interval. For an unwatched job it
// performs a one-shot refresh so the terminal status still propagates.
func (r *Reconciler) ForceRefresh(ctx context.Context, jobID int64) {
	r.mu.Lock()
	p, ok := r.pollers[jobID]
	r.mu.Unlock()

	if ok {
		select {
		case p.refresh <- struct{}{}:
		default:
			// A refresh is already pending; one poll covers both.
		}
		return
	}

	if _, err := r.refreshOnce(ctx, jobID); err != nil {
		log.Debug().Err(err).Int64("job_id", jobID).Msg("stream: one-shot refresh failed")
	}
}

// ApplyResult persists the outcome a stream session delivered and then
// forces a refresh so pull-side consumers catch up immediately. This is
// the only path by which stream outcomes reach the persisted record.
// An outcome the persisted status can no longer accept, such as a
// terminal event arriving after the job was cancelled, is discarded and
// reported as ErrInvalidTransition.
func (r *Reconciler) ApplyResult(ctx context.Context, jobID int64, result *jobexec.FinalResult, errMsg string) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	target, failMsg := resolveOutcome(result, errMsg)

	if !job.Status.ValidTransition(target) {
		log.Debug().
			Int64("job_id", jobID).
			Str("from", string(job.Status)).
			Str("to", string(target)).
			Msg("stream: discarding stream outcome, status already settled")
		return fmt.Errorf("stream.Reconciler.ApplyResult: job %d is %s: %w", jobID, job.Status, domain.ErrInvalidTransition)
	}

	switch target {
	case domain.JobStatusFailed:
		err = r.jobs.SetFailed(ctx, jobID, failMsg)
	case domain.JobStatusPrCreated:
		err = r.jobs.SetPRCreated(ctx, jobID, *result.PRNumber)
	default:
		err = r.jobs.UpdateStatus(ctx, jobID, target)
	}
	if err != nil {
		return err
	}

	r.ForceRefresh(ctx, jobID)

	return nil
}

// resolveOutcome maps a stream outcome onto the status it should
// persist, plus the failure message when that status is Failed.
func resolveOutcome(result *jobexec.FinalResult, errMsg string) (domain.JobStatus, string) {
	switch {
	case errMsg != "":
		return domain.JobStatusFailed, errMsg

	case result == nil:
		// Stream ended with no structured result.
		return domain.JobStatusCompleted, ""

	case result.Status == jobexec.ResultSuccess && result.PRNumber != nil:
		return domain.JobStatusPrCreated, ""

	case result.Status == jobexec.ResultSuccess, result.Status == jobexec.ResultNoChanges:
		return domain.JobStatusCompleted, ""

	default:
		msg := result.Error
		if msg == "" {
			msg = "workflow reported status " + result.Status
		}
		return domain.JobStatusFailed, msg
	}
}

// MonitorStatus returns the current persisted status and the refresh
// interval a view should use for it.
func (r *Reconciler) MonitorStatus(ctx context.Context, jobID int64) (StatusView, error) {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		Status:          job.Status,
		RefreshInterval: r.Interval(job.Status),
	}, nil
}

// Shutdown stops all pollers.
func (r *Reconciler) Shutdown() {
	r.mu.Lock()
	for _, p := range r.pollers {
		p.cancel()
	}
	r.pollers = make(map[int64]*poller)
	r.mu.Unlock()
}

func (r *Reconciler) forget(jobID int64, p *poller) {
	r.mu.Lock()
	if cur, ok := r.pollers[jobID]; ok && cur == p {
		delete(r.pollers, jobID)
	}
	r.mu.Unlock()
}
