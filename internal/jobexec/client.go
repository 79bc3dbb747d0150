package jobexec

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	authHeader = "X-Jobexec-Auth"

	// subscribeBuffer bounds in-flight events between the websocket
	// reader and the consumer; bursts beyond it apply backpressure on
	// the read loop, never reordering.
	subscribeBuffer = 64
)

// WorkflowRequest describes one workflow run to enqueue.
type WorkflowRequest struct {
	WorkflowURL  string `json:"workflow_url"`
	Input        string `json:"input"`
	Channel      string `json:"channel,omitempty"`
	WorkerName   string `json:"worker_name"`
	TimeoutMilli int64  `json:"timeout_ms"`
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

// Client talks to the external job-execution backend: REST for
// enqueue/cancel, websocket for the per-job event feed.
type Client struct {
	http    *resty.Client
	baseURL string
	token   string
	timeout time.Duration
}

// New creates a Client for the backend at baseURL. token may be empty
// when the backend runs without authentication.
func New(baseURL, token string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetHeader(authHeader, token)
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
	}
}

// CheckConnection verifies the backend is reachable.
func (c *Client) CheckConnection(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/v1/healthz")
	if err != nil {
		return fmt.Errorf("jobexec.Client.CheckConnection: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("jobexec.Client.CheckConnection: status %d", resp.StatusCode())
	}
	return nil
}

// Enqueue submits a workflow run and returns the backend's job id
// without waiting for completion. The worker name is generated when
// the request leaves it empty so retries create distinct workers.
func (c *Client) Enqueue(ctx context.Context, req WorkflowRequest) (string, error) {
	if req.WorkerName == "" {
		req.WorkerName = "workflow-" + uuid.NewString()
	}
	if req.TimeoutMilli == 0 {
		req.TimeoutMilli = c.timeout.Milliseconds()
	}

	var out enqueueResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/v1/jobs")
	if err != nil {
		return "", fmt.Errorf("jobexec.Client.Enqueue: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("jobexec.Client.Enqueue: status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.JobID == "" {
		return "", fmt.Errorf("jobexec.Client.Enqueue: backend returned no job id")
	}

	return out.JobID, nil
}

// Cancel asks the backend to stop a running job. The backend responds
// on the event feed with a terminal event; cancelling does not tear
// down local subscriptions.
func (c *Client) Cancel(ctx context.Context, execJobID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", execJobID).
		Delete("/api/v1/jobs/{id}")
	if err != nil {
		return fmt.Errorf("jobexec.Client.Cancel: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("jobexec.Client.Cancel: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Subscribe opens the event feed for one backend job. It returns a
// receive-only channel of decoded events and a cancel func. The channel
// closes when the stream ends, the subscription is cancelled, or ctx is
// done; cancel is idempotent and discards events not yet delivered.
func (c *Client) Subscribe(ctx context.Context, execJobID string) (<-chan Event, func(), error) {
	wsURL := streamURL(c.baseURL, execJobID)

	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{authHeader: []string{c.token}}
	}

	//nolint:bodyclose // coder/websocket hijacks the connection; resp body is not used
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("jobexec.Client.Subscribe: dial: %w", err)
	}
	conn.SetReadLimit(4 * 1024 * 1024)

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, subscribeBuffer)

	go func() {
		defer close(out)
		defer conn.CloseNow()

		for {
			_, payload, readErr := conn.Read(subCtx)
			if readErr != nil {
				select {
				case <-subCtx.Done():
					// Cancelled locally; drop in-flight events.
					return
				default:
				}

				// A normal closure with no terminal frame means the
				// stream ended without a structured result.
				if websocket.CloseStatus(readErr) == websocket.StatusNormalClosure {
					deliver(subCtx, out, EndEvent{})
				} else {
					deliver(subCtx, out, ErrorEvent{Message: "stream closed: " + readErr.Error()})
				}
				return
			}

			evt, decodeErr := decodeFrame(payload)
			if decodeErr != nil {
				log.Warn().Err(decodeErr).Str("exec_job_id", execJobID).Msg("jobexec: skipping undecodable frame")
				continue
			}

			if !deliver(subCtx, out, evt) {
				return
			}

			// Terminal frames end the feed; the backend closes the
			// socket afterwards but there is nothing left to read.
			switch evt.(type) {
			case EndEvent, FinalResultEvent, ErrorEvent:
				return
			}
		}
	}()

	return out, cancel, nil
}

func deliver(ctx context.Context, out chan<- Event, evt Event) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

// streamURL derives the websocket endpoint for a job's event feed.
func streamURL(baseURL, execJobID string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimSuffix(ws, "/") + "/api/v1/jobs/" + execJobID + "/stream"
}
