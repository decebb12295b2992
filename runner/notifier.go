package runner

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/github"
	"github.com/ddev/ddev-add-on-monitoring/health"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
	"github.com/ddev/ddev-add-on-monitoring/notify"
)

// NotifierGateway is the slice of the API client the notifier run needs.
type NotifierGateway interface {
	ListWorkflows(ctx context.Context, repo models.Repository) ([]models.Workflow, error)
}

// StateMachine decides and performs the notification action for one
// classified repository.
type StateMachine interface {
	Process(ctx context.Context, repo models.Repository, state health.State) (notify.Outcome, error)
}

// NotifierResult accumulates classification and action counts across a run.
type NotifierResult struct {
	Total          int
	Healthy        int
	Disabled       int
	NoWorkflows    int
	NoTestWorkflow int
	Skipped        int

	Created    int
	FollowedUp int
	Resolved   int

	RateLimited bool
	DryRun      bool
}

// ExitCode is nonzero only when rate limiting degraded the run.
func (r NotifierResult) ExitCode() int {
	if r.RateLimited {
		return 2
	}
	return 0
}

// Notifier drives classify-then-act for each repository.
type Notifier struct {
	gw               NotifierGateway
	machine          StateMachine
	testWorkflowName string
	out              io.Writer
	dryRun           bool
}

// NewNotifier creates a notifier aggregator writing progress lines to out.
func NewNotifier(gw NotifierGateway, machine StateMachine, testWorkflowName string, dryRun bool, out io.Writer) *Notifier {
	return &Notifier{gw: gw, machine: machine, testWorkflowName: testWorkflowName, out: out, dryRun: dryRun}
}

// Run processes the repositories sequentially and prints a summary. A
// failure on one repository is logged and the batch continues.
func (n *Notifier) Run(ctx context.Context, repos []models.Repository) NotifierResult {
	result := NotifierResult{Total: len(repos), DryRun: n.dryRun}

	for _, repo := range repos {
		n.processOne(ctx, repo, &result)
	}

	n.summary(result)
	return result
}

func (n *Notifier) processOne(ctx context.Context, repo models.Repository, result *NotifierResult) {
	workflows, err := n.gw.ListWorkflows(ctx, repo)
	if err != nil {
		n.skip(repo, err, result)
		return
	}

	state := health.ClassifyWorkflows(workflows, n.testWorkflowName)
	switch state {
	case health.NoWorkflows:
		result.NoWorkflows++
	case health.NoTestWorkflow:
		result.NoTestWorkflow++
	case health.TestsDisabled:
		result.Disabled++
	case health.TestsHealthy:
		result.Healthy++
	}

	outcome, err := n.machine.Process(ctx, repo, state)
	if err != nil {
		// "Could not determine" is never treated as "no issue exists";
		// acting on it could create a duplicate tracking issue.
		n.skip(repo, err, result)
		return
	}

	switch outcome.Action {
	case notify.ActionCreated:
		result.Created++
	case notify.ActionFollowedUp:
		result.FollowedUp++
	case notify.ActionResolved:
		result.Resolved++
	}

	n.progress(repo, state, outcome)
}

func (n *Notifier) skip(repo models.Repository, err error, result *NotifierResult) {
	result.Skipped++
	if github.IsRateLimit(err) {
		result.RateLimited = true
		fmt.Fprintf(n.out, "%-50s SKIPPED (rate limited)\n", repo.FullName())
		return
	}
	logger.Error("Failed to process repository",
		zap.String("repo", repo.FullName()),
		zap.Error(err))
	fmt.Fprintf(n.out, "%-50s SKIPPED (error)\n", repo.FullName())
}

func (n *Notifier) progress(repo models.Repository, state health.State, outcome notify.Outcome) {
	tag := string(state)
	if outcome.Action != notify.ActionNone {
		tag = fmt.Sprintf("%s -> %s", state, outcome.Action)
	} else if outcome.Reason != "" {
		tag = fmt.Sprintf("%s (%s)", state, outcome.Reason)
	}
	fmt.Fprintf(n.out, "%-50s %s\n", repo.FullName(), tag)
}

func (n *Notifier) summary(result NotifierResult) {
	mode := "live"
	if result.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(n.out, "\nProcessed %d repositories (%s): %d healthy, %d disabled, %d without workflows, %d without a test workflow, %d skipped\n",
		result.Total, mode, result.Healthy, result.Disabled, result.NoWorkflows, result.NoTestWorkflow, result.Skipped)
	fmt.Fprintf(n.out, "Actions: %d issues created, %d follow-ups, %d resolved\n",
		result.Created, result.FollowedUp, result.Resolved)
	if result.RateLimited {
		fmt.Fprintln(n.out, "WARNING: run degraded by API rate limiting; some repositories were not processed")
	}
}
