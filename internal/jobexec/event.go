package jobexec

import (
	"encoding/json"
	"fmt"
)

// Event is one message from a job's output feed. The four kinds form a
// closed set; consumers switch exhaustively on the concrete type.
type Event interface {
	isEvent()
}

// DataEvent carries a chunk of raw agent output. Chunk boundaries are
// arbitrary and may split multi-byte characters.
type DataEvent struct {
	Bytes []byte
}

// EndEvent signals the stream closed normally with no structured result.
type EndEvent struct{}

// FinalResultEvent is the terminal structured payload. It supersedes
// all previously accumulated output chunks.
type FinalResultEvent struct {
	Result FinalResult
}

// ErrorEvent is a backend-reported failure. Terminal.
type ErrorEvent struct {
	Message string
}

func (DataEvent) isEvent()        {}
func (EndEvent) isEvent()         {}
func (FinalResultEvent) isEvent() {}
func (ErrorEvent) isEvent()       {}

// Final result status values reported by the workflow.
const (
	ResultSuccess   = "success"
	ResultNoChanges = "no_changes"
	ResultFailed    = "failed"
)

// FinalResult is the structured outcome of a finished workflow run.
type FinalResult struct {
	Status   string `json:"status"`
	PRNumber *int   `json:"pr_number,omitempty"`
	PRURL    string `json:"pr_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// frame is the wire shape of a single stream message.
type frame struct {
	Type     string `json:"type"`
	Data     []byte `json:"data,omitempty"`
	Status   string `json:"status,omitempty"`
	PRNumber *int   `json:"pr_number,omitempty"`
	PRURL    string `json:"pr_url,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// EncodeFrame serializes an Event back into its wire shape, for
// relaying a feed to downstream consumers unchanged.
func EncodeFrame(evt Event) ([]byte, error) {
	var f frame
	switch e := evt.(type) {
	case DataEvent:
		f = frame{Type: "data", Data: e.Bytes}
	case EndEvent:
		f = frame{Type: "end"}
	case FinalResultEvent:
		f = frame{
			Type:     "final",
			Status:   e.Result.Status,
			PRNumber: e.Result.PRNumber,
			PRURL:    e.Result.PRURL,
			Error:    e.Result.Error,
		}
	case ErrorEvent:
		f = frame{Type: "error", Message: e.Message}
	default:
		return nil, fmt.Errorf("jobexec.EncodeFrame: unknown event type %T", evt)
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("jobexec.EncodeFrame: %w", err)
	}

	return payload, nil
}

// decodeFrame parses a raw websocket frame into an Event.
func decodeFrame(payload []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("jobexec.decodeFrame: %w", err)
	}

	switch f.Type {
	case "data":
		return DataEvent{Bytes: f.Data}, nil
	case "end":
		return EndEvent{}, nil
	case "final":
		return FinalResultEvent{Result: FinalResult{
			Status:   f.Status,
			PRNumber: f.PRNumber,
			PRURL:    f.PRURL,
			Error:    f.Error,
		}}, nil
	case "error":
		return ErrorEvent{Message: f.Message}, nil
	default:
		return nil, fmt.Errorf("jobexec.decodeFrame: unknown frame type %q", f.Type)
	}
}
