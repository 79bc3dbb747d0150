package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/jobexec"
)

// SlackAPI abstracts the subset of the Slack client used by Notifier.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Notifier announces job outcomes to a Slack channel. Delivery is best
// effort: failures are logged, never propagated, so a Slack outage can
// not affect job processing.
type Notifier struct {
	api     SlackAPI
	channel string
}

// New creates a Notifier posting to channel with a bot token. An empty
// token or channel disables delivery.
func New(token, channel string) *Notifier {
	if token == "" || channel == "" {
		return &Notifier{}
	}
	return &Notifier{api: slacklib.New(token), channel: channel}
}

// NewWithAPI creates a Notifier with an explicit API client.
func NewWithAPI(api SlackAPI, channel string) *Notifier {
	return &Notifier{api: api, channel: channel}
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.api != nil && n.channel != ""
}

// JobCompleted announces a successful job, including the pull request
// if the workflow opened one.
func (n *Notifier) JobCompleted(ctx context.Context, job *domain.Job, repo *domain.Repository, result *jobexec.FinalResult) {
	var text string
	switch {
	case result != nil && result.PRNumber != nil:
		text = fmt.Sprintf(":tada: Job #%d on %s finished: opened PR #%d for issue #%d",
			job.ID, repo.Name, *result.PRNumber, job.IssueNumber)
		if result.PRURL != "" {
			text += "\n" + result.PRURL
		}
	case result != nil && result.Status == jobexec.ResultNoChanges:
		text = fmt.Sprintf(":white_check_mark: Job #%d on %s finished for issue #%d: no changes needed",
			job.ID, repo.Name, job.IssueNumber)
	default:
		text = fmt.Sprintf(":white_check_mark: Job #%d on %s finished for issue #%d",
			job.ID, repo.Name, job.IssueNumber)
	}

	n.post(ctx, job.ID, text)
}

// JobFailed announces a failed job with the failure reason.
func (n *Notifier) JobFailed(ctx context.Context, job *domain.Job, repo *domain.Repository, errMsg string) {
	text := fmt.Sprintf(":x: Job #%d on %s failed for issue #%d: %s",
		job.ID, repo.Name, job.IssueNumber, errMsg)

	n.post(ctx, job.ID, text)
}

func (n *Notifier) post(ctx context.Context, jobID int64, text string) {
	if !n.Enabled() {
		return
	}

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		log.Error().Err(err).Int64("job_id", jobID).Msg("notify.Notifier.post: slack delivery failed")
	}
}
