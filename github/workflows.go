package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

// ListWorkflows fetches the full workflow list of a repository.
func (c *Client) ListWorkflows(ctx context.Context, repo models.Repository) ([]models.Workflow, error) {
	var workflows []models.Workflow
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("per_page", strconv.Itoa(perPage))
		v.Set("page", strconv.Itoa(page))

		var resp struct {
			TotalCount int               `json:"total_count"`
			Workflows  []models.Workflow `json:"workflows"`
		}
		path := fmt.Sprintf("/repos/%s/actions/workflows", repo.FullName())
		if err := c.get(ctx, path, v, &resp); err != nil {
			return nil, fmt.Errorf("list workflows for %s: %w", repo.FullName(), err)
		}
		workflows = append(workflows, resp.Workflows...)
		if len(resp.Workflows) == 0 || len(workflows) >= resp.TotalCount {
			break
		}
	}

	logger.Debug("Fetched workflows",
		zap.String("repo", repo.FullName()),
		zap.Int("count", len(workflows)))
	return workflows, nil
}

// LatestScheduledRun fetches the single most recent workflow run triggered by
// a schedule event. Returns nil when the repository has never had one.
func (c *Client) LatestScheduledRun(ctx context.Context, repo models.Repository) (*models.WorkflowRun, error) {
	v := url.Values{}
	v.Set("event", "schedule")
	v.Set("per_page", "1")

	var resp struct {
		TotalCount   int                  `json:"total_count"`
		WorkflowRuns []models.WorkflowRun `json:"workflow_runs"`
	}
	path := fmt.Sprintf("/repos/%s/actions/runs", repo.FullName())
	if err := c.get(ctx, path, v, &resp); err != nil {
		return nil, fmt.Errorf("list scheduled runs for %s: %w", repo.FullName(), err)
	}
	if len(resp.WorkflowRuns) == 0 {
		return nil, nil
	}
	run := resp.WorkflowRuns[0]
	return &run, nil
}
