package stream

import (
	"strings"

	"github.com/gosuda/agentdesk/internal/jobexec"
)

// State is the lightweight lifecycle classification of a stream
// session, distinct from the persisted job status.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether the session reached a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// session holds the transient monitoring state for one job: lifecycle
// state, bounded raw chunks, accumulated decoded text, and the optional
// final result. It is owned by exactly one Monitor and never shared.
type session struct {
	state  State
	ring   *ChunkRing
	dec    Decoder
	text   strings.Builder
	result *jobexec.FinalResult
	errMsg string
}

func newSession(maxChunks int) *session {
	return &session{
		state: StateIdle,
		ring:  NewChunkRing(maxChunks),
	}
}

// connecting marks the subscription as requested but not yet confirmed.
func (s *session) connecting() {
	s.state = StateConnecting
}

// apply advances the lifecycle state machine with one feed event.
// Events arrive in backend order; the caller serializes invocations.
func (s *session) apply(evt jobexec.Event) {
	if s.state.Terminal() || s.state == StateIdle {
		// Events for a closed or never-opened session are stale
		// deliveries from a subscription being torn down; drop them.
		return
	}

	switch e := evt.(type) {
	case jobexec.DataEvent:
		s.state = StateStreaming
		s.ring.Append(e.Bytes)
		s.text.WriteString(s.dec.Write(e.Bytes))

	case jobexec.EndEvent:
		s.text.WriteString(s.dec.Flush())
		s.state = StateCompleted

	case jobexec.FinalResultEvent:
		// The structured result replaces the buffer wholesale.
		s.ring.Reset()
		s.dec = Decoder{}
		s.text.Reset()
		res := e.Result
		s.result = &res
		s.state = StateCompleted

	case jobexec.ErrorEvent:
		s.text.WriteString(s.dec.Flush())
		s.errMsg = e.Message
		if s.errMsg == "" {
			s.errMsg = "stream failed"
		}
		s.state = StateError
	}
}

// fail transitions to error outside of event delivery (subscribe
// failures).
func (s *session) fail(msg string) {
	if s.state.Terminal() {
		return
	}
	s.errMsg = msg
	s.state = StateError
}

// reset returns the session to idle, discarding buffer, text, result
// and error regardless of prior state.
func (s *session) reset() {
	s.state = StateIdle
	s.ring.Reset()
	s.dec = Decoder{}
	s.text.Reset()
	s.result = nil
	s.errMsg = ""
}
