package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/agentdesk/internal/jobexec"
)

// fakeFeed is a scripted backend event feed.
type fakeFeed struct {
	events chan jobexec.Event

	mu        sync.Mutex
	cancelled bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan jobexec.Event, 16)}
}

func (f *fakeFeed) subscribe(_ context.Context, _ string) (<-chan jobexec.Event, func(), error) {
	return f.events, f.cancel, nil
}

func (f *fakeFeed) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cancelled {
		f.cancelled = true
		close(f.events)
	}
}

func (f *fakeFeed) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func waitDone(t *testing.T, mon *Monitor) {
	t.Helper()
	select {
	case <-mon.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor event loop did not finish")
	}
}

func TestMonitor_DataThenEnd(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 42, "exec-42", Options{})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("He")}
	feed.events <- jobexec.DataEvent{Bytes: []byte("llo")}
	feed.events <- jobexec.EndEvent{}

	waitDone(t, mon)

	view := mon.Snapshot()
	assert.Equal(t, StateCompleted, view.State)
	assert.Equal(t, "Hello", view.Text)
	assert.Nil(t, view.Result)
	assert.Empty(t, view.Err)
}

func TestMonitor_FinalResultWithoutData(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	var gotResult atomic.Pointer[jobexec.FinalResult]
	mon, err := mgr.Open(context.Background(), 7, "exec-7", Options{
		OnComplete: func(result *jobexec.FinalResult) {
			gotResult.Store(result)
		},
	})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("scratch output")}
	feed.events <- jobexec.FinalResultEvent{Result: jobexec.FinalResult{
		Status:   jobexec.ResultSuccess,
		PRNumber: intp(12),
		PRURL:    "https://x/pulls/12",
	}}

	waitDone(t, mon)

	view := mon.Snapshot()
	assert.Equal(t, StateCompleted, view.State)
	require.NotNil(t, view.Result)
	assert.Equal(t, 12, *view.Result.PRNumber)
	assert.Empty(t, view.Text, "final result supersedes buffered text")
	assert.Zero(t, view.Chunks)

	require.NotNil(t, gotResult.Load())
	assert.Equal(t, "https://x/pulls/12", gotResult.Load().PRURL)
}

func TestMonitor_ErrorEvent(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	var gotMsg atomic.Value
	mon, err := mgr.Open(context.Background(), 1, "exec-1", Options{
		OnError: func(message string) { gotMsg.Store(message) },
	})
	require.NoError(t, err)

	feed.events <- jobexec.ErrorEvent{Message: "agent crashed"}
	waitDone(t, mon)

	view := mon.Snapshot()
	assert.Equal(t, StateError, view.State)
	assert.Equal(t, "agent crashed", view.Err)
	assert.Equal(t, "agent crashed", gotMsg.Load())
}

func TestMonitor_SubscribeFailure(t *testing.T) {
	t.Parallel()

	subscribe := func(_ context.Context, _ string) (<-chan jobexec.Event, func(), error) {
		return nil, nil, errors.New("backend unreachable")
	}
	mgr := NewManager(subscribe)

	mon, err := mgr.Open(context.Background(), 2, "exec-2", Options{})
	require.NoError(t, err)

	waitDone(t, mon)

	view := mon.Snapshot()
	assert.Equal(t, StateError, view.State)
	assert.Contains(t, view.Err, "subscribe failed")
}

func TestMonitor_CloseBeforeSubscribeResolves(t *testing.T) {
	t.Parallel()

	resolve := make(chan struct{})
	feed := newFakeFeed()

	slowSubscribe := func(ctx context.Context, execJobID string) (<-chan jobexec.Event, func(), error) {
		<-resolve
		return feed.subscribe(ctx, execJobID)
	}

	mgr := NewManager(slowSubscribe)
	mon, err := mgr.Open(context.Background(), 3, "exec-3", Options{})
	require.NoError(t, err)

	// Tear down while the subscribe call is still in flight.
	mon.Close()
	close(resolve)

	waitDone(t, mon)

	assert.True(t, feed.wasCancelled(), "just-resolved subscription must be closed immediately")
}

func TestMonitor_CloseBeforeStartReleasesFeed(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mon := newMonitor(context.Background(), 13, "exec-13", feed.subscribe, Options{})

	// The manager publishes a monitor before its event loop launches, so
	// another goroutine can close it in that window. The close must take
	// effect once the loop does launch.
	mon.Close()
	mon.start()

	waitDone(t, mon)
	assert.True(t, feed.wasCancelled(), "a monitor closed before start must not retain its feed")
}

func TestMonitor_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 4, "exec-4", Options{})
	require.NoError(t, err)

	mon.Close()
	mon.Close()
	mon.Close()

	waitDone(t, mon)
}

func TestMonitor_FeedClosedWithoutTerminalEvent(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 5, "exec-5", Options{})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("partial")}
	feed.cancel() // broken transport, no End/Error frame

	waitDone(t, mon)

	view := mon.Snapshot()
	assert.Equal(t, StateError, view.State)
	assert.NotEmpty(t, view.Err)
}

func TestMonitor_ResetReturnsToIdle(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 6, "exec-6", Options{})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("output")}
	feed.events <- jobexec.ErrorEvent{Message: "failed"}
	waitDone(t, mon)

	mon.Reset()

	view := mon.Snapshot()
	assert.Equal(t, StateIdle, view.State)
	assert.Empty(t, view.Text)
	assert.Zero(t, view.Chunks)
	assert.Nil(t, view.Result)
	assert.Empty(t, view.Err)
}

func TestMonitor_OnEventObservesOrderedEvents(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	var (
		mu   sync.Mutex
		seen []jobexec.Event
	)
	mon, err := mgr.Open(context.Background(), 8, "exec-8", Options{
		OnEvent: func(evt jobexec.Event) {
			mu.Lock()
			seen = append(seen, evt)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("a")}
	feed.events <- jobexec.DataEvent{Bytes: []byte("b")}
	feed.events <- jobexec.EndEvent{}
	waitDone(t, mon)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, jobexec.DataEvent{Bytes: []byte("a")}, seen[0])
	assert.Equal(t, jobexec.DataEvent{Bytes: []byte("b")}, seen[1])
	assert.Equal(t, jobexec.EndEvent{}, seen[2])
}

func TestMonitor_BufferEviction(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 9, "exec-9", Options{MaxChunks: 2})
	require.NoError(t, err)

	feed.events <- jobexec.DataEvent{Bytes: []byte("one")}
	feed.events <- jobexec.DataEvent{Bytes: []byte("two")}
	feed.events <- jobexec.DataEvent{Bytes: []byte("three")}
	feed.events <- jobexec.EndEvent{}
	waitDone(t, mon)

	chunks := mon.Chunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, []byte("two"), chunks[0])
	assert.Equal(t, []byte("three"), chunks[1])

	// Decoded text still covers everything that streamed.
	assert.Equal(t, "onetwothree", mon.Snapshot().Text)
}

func TestManager_AtMostOneMonitorPerJob(t *testing.T) {
	t.Parallel()

	first := newFakeFeed()
	second := newFakeFeed()

	feeds := map[string]*fakeFeed{"exec-a": first, "exec-b": second}
	subscribe := func(ctx context.Context, execJobID string) (<-chan jobexec.Event, func(), error) {
		return feeds[execJobID].subscribe(ctx, execJobID)
	}

	mgr := NewManager(subscribe)

	monA, err := mgr.Open(context.Background(), 10, "exec-a", Options{})
	require.NoError(t, err)

	monB, err := mgr.Open(context.Background(), 10, "exec-b", Options{})
	require.NoError(t, err)

	waitDone(t, monA)
	assert.True(t, first.wasCancelled(), "superseded monitor must release its feed")

	got, ok := mgr.Get(10)
	require.True(t, ok)
	assert.Same(t, monB, got)

	second.events <- jobexec.EndEvent{}
	waitDone(t, monB)
}

func TestManager_OpenRejectsEmptyExecID(t *testing.T) {
	t.Parallel()

	mgr := NewManager(newFakeFeed().subscribe)
	_, err := mgr.Open(context.Background(), 11, "", Options{})
	assert.Error(t, err)
}

func TestManager_Release(t *testing.T) {
	t.Parallel()

	feed := newFakeFeed()
	mgr := NewManager(feed.subscribe)

	mon, err := mgr.Open(context.Background(), 12, "exec-12", Options{})
	require.NoError(t, err)

	mgr.Release(12)
	waitDone(t, mon)

	_, ok := mgr.Get(12)
	assert.False(t, ok)

	// Releasing again is a no-op.
	mgr.Release(12)
}
