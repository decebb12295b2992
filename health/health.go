// Package health assigns a health state to a repository's test workflow
// setup. The notifier variant judges the workflow list; the checker variant
// judges the most recent scheduled run.
package health

import (
	"strings"
	"time"

	"github.com/ddev/ddev-add-on-monitoring/models"
)

// State is the computed per-repository health classification.
type State string

const (
	// Notifier variant states.
	NoWorkflows    State = "NO_WORKFLOWS"
	NoTestWorkflow State = "NO_TEST_WORKFLOW"
	TestsDisabled  State = "TESTS_DISABLED"
	TestsHealthy   State = "TESTS_HEALTHY"

	// Checker variant states.
	NoScheduledRuns State = "NO_SCHEDULED_RUNS"
	LastRunFailed   State = "LAST_RUN_FAILED"
	LastRunOK       State = "LAST_RUN_OK"
)

// ClassifyWorkflows judges a repository by its workflow list. The test
// workflow is identified by exact, case-insensitive name match; any match
// counts, multiple same-named workflows are not disambiguated.
func ClassifyWorkflows(workflows []models.Workflow, testWorkflowName string) State {
	if len(workflows) == 0 {
		return NoWorkflows
	}

	found := false
	for _, wf := range workflows {
		if !strings.EqualFold(wf.Name, testWorkflowName) {
			continue
		}
		found = true
		if wf.State.Disabled() {
			return TestsDisabled
		}
	}
	if !found {
		return NoTestWorkflow
	}
	return TestsHealthy
}

// RunReport is the checker judgment of the most recent scheduled run.
// Staleness and the run conclusion are independent observations.
type RunReport struct {
	State State
	Stale bool
	Age   time.Duration
	Run   *models.WorkflowRun
}

// ClassifyScheduledRun judges the single most recent scheduled run. A nil
// run means the repository has never had one.
func ClassifyScheduledRun(run *models.WorkflowRun, staleAfter time.Duration, now time.Time) RunReport {
	if run == nil {
		return RunReport{State: NoScheduledRuns}
	}

	report := RunReport{Run: run, Age: now.Sub(run.UpdatedAt)}
	report.Stale = report.Age > staleAfter

	if run.Conclusion == "failure" {
		report.State = LastRunFailed
	} else {
		report.State = LastRunOK
	}
	return report
}
