// Package runner drives the per-repository pipelines, isolating failures so
// one repository cannot abort the batch, and folds results into a
// process-wide exit signal.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/github"
	"github.com/ddev/ddev-add-on-monitoring/health"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

// CheckerGateway is the slice of the API client the checker needs.
type CheckerGateway interface {
	LatestScheduledRun(ctx context.Context, repo models.Repository) (*models.WorkflowRun, error)
}

// CheckerResult accumulates per-repository observations across a run.
type CheckerResult struct {
	Total       int
	Healthy     int
	Stale       int
	Failed      int
	Missing     int
	Skipped     int
	RateLimited bool
}

// ExitCode folds the observations into the worst-case exit signal:
// a failed run outranks staleness, which outranks missing scheduled runs.
func (r CheckerResult) ExitCode() int {
	switch {
	case r.Failed > 0:
		return 1
	case r.Stale > 0:
		return 2
	case r.Missing > 0:
		return 3
	default:
		return 0
	}
}

// Checker audits the most recent scheduled run of each repository.
type Checker struct {
	gw         CheckerGateway
	staleAfter time.Duration
	out        io.Writer
	now        func() time.Time
}

// NewChecker creates a checker aggregator writing progress lines to out.
func NewChecker(gw CheckerGateway, staleAfter time.Duration, out io.Writer) *Checker {
	return &Checker{gw: gw, staleAfter: staleAfter, out: out, now: time.Now}
}

// Run processes the repositories sequentially and prints a summary.
func (c *Checker) Run(ctx context.Context, repos []models.Repository) CheckerResult {
	result := CheckerResult{Total: len(repos)}

	for _, repo := range repos {
		run, err := c.gw.LatestScheduledRun(ctx, repo)
		if err != nil {
			result.Skipped++
			if github.IsRateLimit(err) {
				result.RateLimited = true
				c.progress(repo, "SKIPPED (rate limited)")
			} else {
				logger.Error("Failed to check repository",
					zap.String("repo", repo.FullName()),
					zap.Error(err))
				c.progress(repo, "SKIPPED (error)")
			}
			continue
		}

		report := health.ClassifyScheduledRun(run, c.staleAfter, c.now())
		switch report.State {
		case health.NoScheduledRuns:
			result.Missing++
			c.progress(repo, "NO SCHEDULED RUNS")
		case health.LastRunFailed:
			result.Failed++
			c.progress(repo, c.tag("FAILED", report))
			if report.Stale {
				result.Stale++
			}
		case health.LastRunOK:
			if report.Stale {
				result.Stale++
				c.progress(repo, c.tag("OK", report))
			} else {
				result.Healthy++
				c.progress(repo, "OK")
			}
		}
	}

	c.summary(result)
	return result
}

func (c *Checker) tag(base string, report health.RunReport) string {
	if report.Stale {
		days := int(report.Age.Hours() / 24)
		return fmt.Sprintf("%s (stale: last scheduled run %dd ago, %s)", base, days, report.Run.HTMLURL)
	}
	return base
}

func (c *Checker) progress(repo models.Repository, tag string) {
	fmt.Fprintf(c.out, "%-50s %s\n", repo.FullName(), tag)
}

func (c *Checker) summary(result CheckerResult) {
	fmt.Fprintf(c.out, "\nChecked %d repositories: %d healthy, %d stale, %d failed, %d without scheduled runs, %d skipped\n",
		result.Total, result.Healthy, result.Stale, result.Failed, result.Missing, result.Skipped)
	if result.RateLimited {
		fmt.Fprintln(c.out, "WARNING: run degraded by API rate limiting; some repositories were not checked")
	}
}
