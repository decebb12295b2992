package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ddev/ddev-add-on-monitoring/github"
	"github.com/ddev/ddev-add-on-monitoring/health"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

func init() {
	_ = logger.Initialize("debug")
}

// MockIssueAPI is a mock implementation of the issue gateway
type MockIssueAPI struct {
	mock.Mock
}

func (m *MockIssueAPI) ListIssues(ctx context.Context, repo models.Repository, state string) ([]models.Issue, error) {
	args := m.Called(ctx, repo, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Issue), args.Error(1)
}

func (m *MockIssueAPI) ListIssueComments(ctx context.Context, repo models.Repository, number int) ([]models.IssueComment, error) {
	args := m.Called(ctx, repo, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IssueComment), args.Error(1)
}

func (m *MockIssueAPI) CreateIssue(ctx context.Context, repo models.Repository, title, body string) (*models.Issue, error) {
	args := m.Called(ctx, repo, title, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Issue), args.Error(1)
}

func (m *MockIssueAPI) CreateComment(ctx context.Context, repo models.Repository, number int, body string) error {
	args := m.Called(ctx, repo, number, body)
	return args.Error(0)
}

func (m *MockIssueAPI) CloseIssue(ctx context.Context, repo models.Repository, number int, title string) error {
	args := m.Called(ctx, repo, number, title)
	return args.Error(0)
}

var (
	testRepo = models.Repository{Owner: "ddev", Name: "ddev-redis"}
	testNow  = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
)

func newTestNotifier(api IssueAPI, maxNotifications, intervalDays, cooldownDays int) *Notifier {
	n := New(api, maxNotifications, intervalDays, cooldownDays)
	n.now = func() time.Time { return testNow }
	return n
}

func trackingIssue(number, comments int, createdAt time.Time) models.Issue {
	return models.Issue{
		Number:    number,
		Title:     fmt.Sprintf("%s (%s)", issueTitleBase, createdAt.Format("2006-01-02")),
		State:     "open",
		Comments:  comments,
		CreatedAt: createdAt,
	}
}

func resolvedClosedIssue(number int, createdAt, closedAt time.Time) models.Issue {
	issue := trackingIssue(number, 1, createdAt)
	issue.Title = resolvedPrefix + issue.Title
	issue.State = "closed"
	issue.ClosedAt = &closedAt
	return issue
}

// Scenario A: disabled workflow, no existing tracking issue.
func TestDisabledCreatesTrackingIssue(t *testing.T) {
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{}, nil)
	api.On("CreateIssue", mock.Anything, testRepo, mock.MatchedBy(func(title string) bool {
		return title == "DDEV Add-on Test Workflows Suspended (2026-08-25)"
	}), mock.Anything).Return(&models.Issue{Number: 7, State: "open"}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcome.Action)
	assert.Equal(t, 1, outcome.NotificationCount)
	api.AssertExpectations(t)
}

// Scenario B: tracking issue created 10 days ago with 0 comments and a
// 7-day interval gets a follow-up; the count becomes 2.
func TestFollowUpAfterInterval(t *testing.T) {
	issue := trackingIssue(7, 0, testNow.Add(-10*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{issue}, nil)
	api.On("CreateComment", mock.Anything, testRepo, 7, mock.Anything).Return(nil)

	n := newTestNotifier(api, 2, 7, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionFollowedUp, outcome.Action)
	assert.Equal(t, 2, outcome.NotificationCount)
	api.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Scenario C: max notifications already sent.
func TestMaxNotificationsReached(t *testing.T) {
	// 1 comment plus the creation itself = 2 notifications = the maximum.
	issue := trackingIssue(7, 1, testNow.Add(-90*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{issue}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionNone, outcome.Action)
	assert.Equal(t, "max notifications reached", outcome.Reason)
	assert.Equal(t, 2, outcome.NotificationCount)
	api.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Idempotence: a second run right after creation takes no action.
func TestSecondRunTakesNoAction(t *testing.T) {
	issue := trackingIssue(7, 0, testNow)
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{issue}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionNone, outcome.Action)
	assert.Equal(t, "notified recently", outcome.Reason)
	api.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// The follow-up interval is measured from the newest comment, not only from
// issue creation.
func TestIntervalMeasuredFromLastComment(t *testing.T) {
	issue := trackingIssue(7, 1, testNow.Add(-100*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{issue}, nil)
	api.On("ListIssueComments", mock.Anything, testRepo, 7).Return([]models.IssueComment{
		{ID: 1, CreatedAt: testNow.Add(-5 * 24 * time.Hour)},
	}, nil)

	n := newTestNotifier(api, 3, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionNone, outcome.Action)
	assert.Equal(t, "notified recently", outcome.Reason)
}

// Scenario D: workflow healthy again with an open tracking issue.
func TestHealthyResolvesTrackingIssue(t *testing.T) {
	issue := trackingIssue(7, 1, testNow.Add(-20*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{issue}, nil)
	api.On("CreateComment", mock.Anything, testRepo, 7, mock.Anything).Return(nil)
	api.On("CloseIssue", mock.Anything, testRepo, 7, mock.MatchedBy(func(title string) bool {
		return strings.HasPrefix(title, resolvedPrefix) &&
			!strings.HasPrefix(strings.TrimPrefix(title, resolvedPrefix), resolvedPrefix)
	})).Return(nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsHealthy)

	require.NoError(t, err)
	assert.Equal(t, ActionResolved, outcome.Action)
	api.AssertExpectations(t)
}

func TestHealthyWithoutIssueDoesNothing(t *testing.T) {
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsHealthy)

	require.NoError(t, err)
	assert.Equal(t, ActionNone, outcome.Action)
	api.AssertNotCalled(t, "CloseIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCooldownSuppressesNewIssue(t *testing.T) {
	closed := resolvedClosedIssue(5,
		testNow.Add(-40*24*time.Hour),
		testNow.Add(-10*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{closed}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionNone, outcome.Action)
	assert.Contains(t, outcome.Reason, "cooldown")
	api.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	// The cooldown guard runs before the open-issue lookup.
	api.AssertNotCalled(t, "ListIssues", mock.Anything, testRepo, "open")
}

func TestCooldownExpired(t *testing.T) {
	closed := resolvedClosedIssue(5,
		testNow.Add(-130*24*time.Hour),
		testNow.Add(-100*24*time.Hour))
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{closed}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{}, nil)
	api.On("CreateIssue", mock.Anything, testRepo, mock.Anything, mock.Anything).
		Return(&models.Issue{Number: 8, State: "open"}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcome.Action)
}

// Issues closed by the owner (no resolved marker) never start a cooldown.
func TestOwnerClosedIssueDoesNotCooldown(t *testing.T) {
	closedAt := testNow.Add(-5 * 24 * time.Hour)
	ownerClosed := trackingIssue(5, 0, testNow.Add(-30*24*time.Hour))
	ownerClosed.State = "closed"
	ownerClosed.ClosedAt = &closedAt

	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{ownerClosed}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{}, nil)
	api.On("CreateIssue", mock.Anything, testRepo, mock.Anything, mock.Anything).
		Return(&models.Issue{Number: 9, State: "open"}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcome.Action)
}

// A resolved title edited to drop the date stamp falls out of cooldown.
func TestEditedTitleWithoutDateStampSkipsCooldown(t *testing.T) {
	closedAt := testNow.Add(-5 * 24 * time.Hour)
	edited := models.Issue{
		Number:   5,
		Title:    resolvedPrefix + issueTitleBase,
		State:    "closed",
		ClosedAt: &closedAt,
	}

	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{edited}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{}, nil)
	api.On("CreateIssue", mock.Anything, testRepo, mock.Anything, mock.Anything).
		Return(&models.Issue{Number: 10, State: "open"}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcome.Action)
}

// A rate-limited issue lookup must surface as an error, never as "no issue
// exists" — acting on it could create a duplicate.
func TestRateLimitedLookupPropagates(t *testing.T) {
	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").
		Return(nil, &github.RateLimitError{Endpoint: "/repos/ddev/ddev-redis/issues", Remaining: 3})

	n := newTestNotifier(api, 2, 30, 60)
	_, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.Error(t, err)
	assert.True(t, github.IsRateLimit(err))
	api.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Resolved-marker titles are excluded from the open-issue match even if such
// an issue is somehow still open.
func TestOpenResolvedTitleIsNotATrackingIssue(t *testing.T) {
	stray := trackingIssue(3, 0, testNow.Add(-50*24*time.Hour))
	stray.Title = resolvedPrefix + stray.Title

	api := new(MockIssueAPI)
	api.On("ListIssues", mock.Anything, testRepo, "closed").Return([]models.Issue{}, nil)
	api.On("ListIssues", mock.Anything, testRepo, "open").Return([]models.Issue{stray}, nil)
	api.On("CreateIssue", mock.Anything, testRepo, mock.Anything, mock.Anything).
		Return(&models.Issue{Number: 11, State: "open"}, nil)

	n := newTestNotifier(api, 2, 30, 60)
	outcome, err := n.Process(context.Background(), testRepo, health.TestsDisabled)

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, outcome.Action)
}

func TestOtherStatesTakeNoAction(t *testing.T) {
	api := new(MockIssueAPI)

	n := newTestNotifier(api, 2, 30, 60)
	for _, state := range []health.State{health.NoWorkflows, health.NoTestWorkflow} {
		outcome, err := n.Process(context.Background(), testRepo, state)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, outcome.Action)
	}
	api.AssertNotCalled(t, "ListIssues", mock.Anything, mock.Anything, mock.Anything)
}
