package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentdesk/internal/jobexec"
)

// SubscribeFunc opens the backend event feed for one execution job id,
// returning a receive-only event channel and a cancel func. The channel
// must close after a terminal event or when cancelled.
type SubscribeFunc func(ctx context.Context, execJobID string) (<-chan jobexec.Event, func(), error)

// Options configures a Monitor.
type Options struct {
	// MaxChunks bounds the raw chunk buffer; <= 0 uses DefaultMaxChunks.
	MaxChunks int

	// OnEvent observes every feed event after it is applied, in order.
	// Used to fan events out to UI transports.
	OnEvent func(evt jobexec.Event)

	// OnComplete fires once when the session completes, with the final
	// structured result if one was delivered (nil after a plain End).
	OnComplete func(result *jobexec.FinalResult)

	// OnError fires once when the session enters the error state.
	OnError func(message string)
}

// View is a point-in-time snapshot of a monitored session.
type View struct {
	JobID  int64
	State  State
	Text   string
	Chunks int
	Result *jobexec.FinalResult
	Err    string
}

// Monitor owns the stream session for one job: it holds the single
// backend subscription, serializes all state transitions through one
// event loop goroutine, and exposes snapshots to the rest of the app.
type Monitor struct {
	jobID     int64
	execJobID string
	subscribe SubscribeFunc
	opts      Options

	mu   sync.Mutex
	sess *session

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// newMonitor builds a monitor with its run context already cancellable,
// so Close is safe the instant the monitor becomes reachable, before
// the event loop has launched.
func newMonitor(ctx context.Context, jobID int64, execJobID string, subscribe SubscribeFunc, opts Options) *Monitor {
	runCtx, cancel := context.WithCancel(ctx)
	return &Monitor{
		jobID:     jobID,
		execJobID: execJobID,
		subscribe: subscribe,
		opts:      opts,
		sess:      newSession(opts.MaxChunks),
		runCtx:    runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// start transitions idle -> connecting and launches the event loop.
func (m *Monitor) start() {
	m.mu.Lock()
	m.sess.connecting()
	m.mu.Unlock()

	go m.run(m.runCtx)
}

// run opens the subscription and drains its event channel. All session
// mutation happens here, so event processing is inherently sequential.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	events, cancelSub, err := m.subscribe(ctx, m.execJobID)
	if err != nil {
		m.failSession("subscribe failed: " + err.Error())
		return
	}

	// The monitor may have been closed while the subscribe call was in
	// flight. Checked at resolution time, before the subscription is
	// retained, so a torn-down monitor never leaks a live feed.
	select {
	case <-ctx.Done():
		cancelSub()
		return
	default:
	}
	defer cancelSub()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				m.handleFeedClosed()
				return
			}
			m.handleEvent(evt)
			if terminal(evt) {
				return
			}
		}
	}
}

func (m *Monitor) handleEvent(evt jobexec.Event) {
	m.mu.Lock()
	m.sess.apply(evt)
	state := m.sess.state
	result := m.sess.result
	errMsg := m.sess.errMsg
	m.mu.Unlock()

	if m.opts.OnEvent != nil {
		m.opts.OnEvent(evt)
	}

	switch state {
	case StateCompleted:
		if terminal(evt) && m.opts.OnComplete != nil {
			m.opts.OnComplete(result)
		}
	case StateError:
		if terminal(evt) && m.opts.OnError != nil {
			m.opts.OnError(errMsg)
		}
	}
}

// handleFeedClosed treats a feed that closed without a terminal event
// as a broken stream.
func (m *Monitor) handleFeedClosed() {
	m.mu.Lock()
	alreadyTerminal := m.sess.state.Terminal()
	m.mu.Unlock()

	if alreadyTerminal {
		return
	}

	log.Debug().Int64("job_id", m.jobID).Msg("stream: feed closed without terminal event")
	m.failSession("stream closed before completion")
}

func (m *Monitor) failSession(msg string) {
	m.mu.Lock()
	m.sess.fail(msg)
	errMsg := m.sess.errMsg
	m.mu.Unlock()

	if m.opts.OnError != nil {
		m.opts.OnError(errMsg)
	}
}

// Snapshot returns the current session view.
func (m *Monitor) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return View{
		JobID:  m.jobID,
		State:  m.sess.state,
		Text:   m.sess.text.String(),
		Chunks: m.sess.ring.Len(),
		Result: m.sess.result,
		Err:    m.sess.errMsg,
	}
}

// Chunks returns the retained raw chunks, oldest first.
func (m *Monitor) Chunks() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.ring.Snapshot()
}

// Reset returns the session to idle, discarding all accumulated state.
// The subscription, if still live, is closed first.
func (m *Monitor) Reset() {
	m.Close()

	m.mu.Lock()
	m.sess.reset()
	m.mu.Unlock()
}

// Close tears the subscription down. Idempotent and safe to call at any
// point, including before the event loop has launched or while the
// subscribe call is in flight; undelivered events are discarded.
func (m *Monitor) Close() {
	m.cancel()
}

// Done is closed when the event loop has exited.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func terminal(evt jobexec.Event) bool {
	switch evt.(type) {
	case jobexec.EndEvent, jobexec.FinalResultEvent, jobexec.ErrorEvent:
		return true
	default:
		return false
	}
}

// Manager tracks at most one live Monitor per job id.
type Manager struct {
	subscribe SubscribeFunc

	mu       sync.Mutex
	monitors map[int64]*Monitor
}

// NewManager creates a Manager that opens feeds via subscribe.
func NewManager(subscribe SubscribeFunc) *Manager {
	return &Manager{
		subscribe: subscribe,
		monitors:  make(map[int64]*Monitor),
	}
}

// Open starts monitoring a job. Any previous monitor for the same job
// id is closed first: a stream session has exactly one owner.
func (m *Manager) Open(ctx context.Context, jobID int64, execJobID string, opts Options) (*Monitor, error) {
	if execJobID == "" {
		return nil, fmt.Errorf("stream.Manager.Open: empty execution job id")
	}

	mon := newMonitor(ctx, jobID, execJobID, m.subscribe, opts)

	m.mu.Lock()
	if prev, ok := m.monitors[jobID]; ok {
		prev.Close()
	}
	m.monitors[jobID] = mon
	m.mu.Unlock()

	mon.start()

	return mon, nil
}

// Get returns the live monitor for a job, if any.
func (m *Manager) Get(jobID int64) (*Monitor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.monitors[jobID]
	return mon, ok
}

// Release closes and forgets the monitor for a job. Safe when none
// exists.
func (m *Manager) Release(jobID int64) {
	m.mu.Lock()
	mon, ok := m.monitors[jobID]
	if ok {
		delete(m.monitors, jobID)
	}
	m.mu.Unlock()

	if ok {
		mon.Close()
	}
}

// Shutdown closes every live monitor.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	monitors := make([]*Monitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		monitors = append(monitors, mon)
	}
	m.monitors = make(map[int64]*Monitor)
	m.mu.Unlock()

	for _, mon := range monitors {
		mon.Close()
	}
}
