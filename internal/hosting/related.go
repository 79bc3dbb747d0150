package hosting

import (
	"strconv"
	"strings"

	"github.com/gosuda/agentdesk/internal/domain"
)

// RelatedPulls filters pulls down to those that reference an issue.
// A pull is related when its title or body mentions "#<n>", or when its
// head branch is named after the issue (issue-<n>, fix/<n>, or a /<n>
// suffix).
func RelatedPulls(pulls []*domain.PullRequest, issueNumber int) []*domain.PullRequest {
	related := make([]*domain.PullRequest, 0)
	for _, pr := range pulls {
		if IsRelatedPull(pr, issueNumber) {
			related = append(related, pr)
		}
	}
	return related
}

// IsRelatedPull reports whether one pull references the issue.
func IsRelatedPull(pr *domain.PullRequest, issueNumber int) bool {
	ref := "#" + strconv.Itoa(issueNumber)
	if mentionsIssue(pr.Title, ref) || mentionsIssue(pr.Body, ref) {
		return true
	}
	return branchNamesIssue(pr.Head, strconv.Itoa(issueNumber))
}

// mentionsIssue scans for "#<n>" as a complete reference: "#4" must not
// match inside "#42".
func mentionsIssue(text, ref string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], ref)
		if j < 0 {
			return false
		}
		end := i + j + len(ref)
		if end == len(text) || !isDigit(text[end]) {
			return true
		}
		i = end
	}
}

var issueBranchPrefixes = []string{"issue-", "issue/", "fix-", "fix/"}

func branchNamesIssue(branch, num string) bool {
	for _, prefix := range issueBranchPrefixes {
		if segmentIndex(branch, prefix+num) >= 0 {
			return true
		}
	}
	if strings.HasSuffix(branch, "/"+num) {
		return true
	}
	return false
}

// segmentIndex locates needle in s with the issue number not running
// into further digits, so "issue-4" does not match "issue-42".
func segmentIndex(s, needle string) int {
	for i := 0; ; {
		j := strings.Index(s[i:], needle)
		if j < 0 {
			return -1
		}
		end := i + j + len(needle)
		if end == len(s) || !isDigit(s[end]) {
			return i + j
		}
		i = end
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
