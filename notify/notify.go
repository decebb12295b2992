// Package notify implements the owner-notification state machine. A
// repository's tracking issue is the only durable state: the title carries
// the creation date and resolution marker, and the comment count is the
// notification counter.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/health"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

const (
	// issueTitleBase identifies tracking issues by substring match.
	issueTitleBase = "DDEV Add-on Test Workflows Suspended"

	// resolvedPrefix marks issues closed by resolution rather than by the
	// owner; only those start a cooldown window.
	resolvedPrefix = "[RESOLVED] "
)

// titleDatePattern matches the creation date stamp embedded in the title.
// A resolved issue whose title was edited to drop the stamp falls out of
// cooldown consideration.
var titleDatePattern = regexp.MustCompile(`\(\d{4}-\d{2}-\d{2}\)`)

// IssueAPI is the slice of the gateway the state machine needs. All
// mutations go through it so dry-run and rate-limit policy apply uniformly.
type IssueAPI interface {
	ListIssues(ctx context.Context, repo models.Repository, state string) ([]models.Issue, error)
	ListIssueComments(ctx context.Context, repo models.Repository, number int) ([]models.IssueComment, error)
	CreateIssue(ctx context.Context, repo models.Repository, title, body string) (*models.Issue, error)
	CreateComment(ctx context.Context, repo models.Repository, number int, body string) error
	CloseIssue(ctx context.Context, repo models.Repository, number int, title string) error
}

// Action is what the state machine did for one repository.
type Action string

const (
	ActionNone       Action = "none"
	ActionCreated    Action = "created"
	ActionFollowedUp Action = "followed-up"
	ActionResolved   Action = "resolved"
)

// Outcome reports the action taken and, where meaningful, the notification
// count after it.
type Outcome struct {
	Action            Action
	Reason            string
	NotificationCount int
}

// Notifier drives the per-repository notification lifecycle.
type Notifier struct {
	api              IssueAPI
	maxNotifications int
	interval         time.Duration
	cooldown         time.Duration
	now              func() time.Time
}

// New creates a state machine with the given policy knobs (in days).
func New(api IssueAPI, maxNotifications, intervalDays, cooldownDays int) *Notifier {
	return &Notifier{
		api:              api,
		maxNotifications: maxNotifications,
		interval:         time.Duration(intervalDays) * 24 * time.Hour,
		cooldown:         time.Duration(cooldownDays) * 24 * time.Hour,
		now:              time.Now,
	}
}

// Process applies the state machine to one repository given its health
// classification. Errors (including rate limiting) mean "could not
// determine"; the caller must skip the repository rather than act.
func (n *Notifier) Process(ctx context.Context, repo models.Repository, state health.State) (Outcome, error) {
	switch state {
	case health.TestsDisabled:
		return n.handleDisabled(ctx, repo)
	case health.TestsHealthy:
		return n.handleHealthy(ctx, repo)
	default:
		return Outcome{Action: ActionNone, Reason: "no notification policy for " + string(state)}, nil
	}
}

// handleDisabled walks the transition rules in order: cooldown guard first,
// then create / follow-up / leave alone against the open tracking issue.
func (n *Notifier) handleDisabled(ctx context.Context, repo models.Repository) (Outcome, error) {
	inCooldown, closedAt, err := n.inCooldown(ctx, repo)
	if err != nil {
		return Outcome{}, err
	}
	if inCooldown {
		return Outcome{
			Action: ActionNone,
			Reason: fmt.Sprintf("cooldown until %s", closedAt.Add(n.cooldown).Format("2006-01-02")),
		}, nil
	}

	issue, err := n.findOpenTrackingIssue(ctx, repo)
	if err != nil {
		return Outcome{}, err
	}

	if issue == nil {
		title := fmt.Sprintf("%s (%s)", issueTitleBase, n.now().Format("2006-01-02"))
		created, err := n.api.CreateIssue(ctx, repo, title, suspendedIssueBody(repo))
		if err != nil {
			return Outcome{}, err
		}
		logger.Info("Opened tracking issue",
			zap.String("repo", repo.FullName()),
			zap.Int("number", created.Number))
		return Outcome{Action: ActionCreated, Reason: "tests disabled", NotificationCount: 1}, nil
	}

	// The creation itself counts as notification #1.
	count := issue.Comments + 1
	if count >= n.maxNotifications {
		return Outcome{Action: ActionNone, Reason: "max notifications reached", NotificationCount: count}, nil
	}

	last, err := n.lastNotifiedAt(ctx, repo, issue)
	if err != nil {
		return Outcome{}, err
	}
	if n.now().Sub(last) < n.interval {
		return Outcome{Action: ActionNone, Reason: "notified recently", NotificationCount: count}, nil
	}

	if err := n.api.CreateComment(ctx, repo, issue.Number, followUpBody(repo, count+1, n.maxNotifications)); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionFollowedUp, Reason: "follow-up notification", NotificationCount: count + 1}, nil
}

// handleHealthy resolves an open tracking issue: resolution comment,
// idempotent title prefix, close. This is the only path that starts the
// cooldown window.
func (n *Notifier) handleHealthy(ctx context.Context, repo models.Repository) (Outcome, error) {
	issue, err := n.findOpenTrackingIssue(ctx, repo)
	if err != nil {
		return Outcome{}, err
	}
	if issue == nil {
		return Outcome{Action: ActionNone, Reason: "healthy"}, nil
	}

	if err := n.api.CreateComment(ctx, repo, issue.Number, resolutionBody(repo)); err != nil {
		return Outcome{}, err
	}

	title := issue.Title
	if !strings.HasPrefix(title, resolvedPrefix) {
		title = resolvedPrefix + title
	}
	if err := n.api.CloseIssue(ctx, repo, issue.Number, title); err != nil {
		return Outcome{}, err
	}

	logger.Info("Resolved tracking issue",
		zap.String("repo", repo.FullName()),
		zap.Int("number", issue.Number))
	return Outcome{Action: ActionResolved, Reason: "tests healthy again"}, nil
}

// inCooldown reports whether the most recently resolution-closed tracking
// issue was closed within the cooldown window.
func (n *Notifier) inCooldown(ctx context.Context, repo models.Repository) (bool, time.Time, error) {
	closed, err := n.api.ListIssues(ctx, repo, "closed")
	if err != nil {
		return false, time.Time{}, err
	}

	var latest time.Time
	for _, issue := range closed {
		if !strings.Contains(issue.Title, issueTitleBase) {
			continue
		}
		if !strings.HasPrefix(issue.Title, resolvedPrefix) {
			// Closed by the owner, not by resolution; no cooldown.
			continue
		}
		if !titleDatePattern.MatchString(issue.Title) {
			continue
		}
		if issue.ClosedAt != nil && issue.ClosedAt.After(latest) {
			latest = *issue.ClosedAt
		}
	}

	if latest.IsZero() {
		return false, time.Time{}, nil
	}
	return n.now().Sub(latest) < n.cooldown, latest, nil
}

// findOpenTrackingIssue locates the open tracking issue by title substring,
// excluding titles already carrying the resolved marker. At most one open
// tracking issue exists per repository; the first match wins.
func (n *Notifier) findOpenTrackingIssue(ctx context.Context, repo models.Repository) (*models.Issue, error) {
	open, err := n.api.ListIssues(ctx, repo, "open")
	if err != nil {
		return nil, err
	}
	for i := range open {
		if strings.HasPrefix(open[i].Title, resolvedPrefix) {
			continue
		}
		if strings.Contains(open[i].Title, issueTitleBase) {
			return &open[i], nil
		}
	}
	return nil, nil
}

// lastNotifiedAt returns the time of the most recent notification on the
// issue: creation time when there are no comments, otherwise the newest
// comment.
func (n *Notifier) lastNotifiedAt(ctx context.Context, repo models.Repository, issue *models.Issue) (time.Time, error) {
	if issue.Comments == 0 {
		return issue.CreatedAt, nil
	}
	comments, err := n.api.ListIssueComments(ctx, repo, issue.Number)
	if err != nil {
		return time.Time{}, err
	}
	if len(comments) == 0 {
		return issue.CreatedAt, nil
	}
	last := issue.CreatedAt
	for _, comment := range comments {
		if comment.CreatedAt.After(last) {
			last = comment.CreatedAt
		}
	}
	return last, nil
}
