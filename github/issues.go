package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

// ListIssues lists a repository's issues in the given state ("open" or
// "closed"). Pull requests, which the issues endpoint also returns, are
// filtered out.
func (c *Client) ListIssues(ctx context.Context, repo models.Repository, state string) ([]models.Issue, error) {
	var issues []models.Issue
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("state", state)
		v.Set("per_page", strconv.Itoa(perPage))
		v.Set("page", strconv.Itoa(page))

		var items []models.Issue
		path := fmt.Sprintf("/repos/%s/issues", repo.FullName())
		if err := c.get(ctx, path, v, &items); err != nil {
			return nil, fmt.Errorf("list %s issues for %s: %w", state, repo.FullName(), err)
		}
		if len(items) == 0 {
			break
		}
		for _, issue := range items {
			if issue.PullRequest != nil {
				continue
			}
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// ListIssueComments lists all comments on an issue, oldest first.
func (c *Client) ListIssueComments(ctx context.Context, repo models.Repository, number int) ([]models.IssueComment, error) {
	var comments []models.IssueComment
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("per_page", strconv.Itoa(perPage))
		v.Set("page", strconv.Itoa(page))

		var items []models.IssueComment
		path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo.FullName(), number)
		if err := c.get(ctx, path, v, &items); err != nil {
			return nil, fmt.Errorf("list comments for %s#%d: %w", repo.FullName(), number, err)
		}
		if len(items) == 0 {
			break
		}
		comments = append(comments, items...)
	}
	return comments, nil
}

// CreateIssue opens a new issue. In dry-run mode it logs what would happen
// and returns a synthetic issue so the caller's accounting stays intact.
func (c *Client) CreateIssue(ctx context.Context, repo models.Repository, title, body string) (*models.Issue, error) {
	if c.dryRun {
		logger.Info("DRY RUN: would create issue",
			zap.String("repo", repo.FullName()),
			zap.String("title", title))
		return &models.Issue{Title: title, State: "open", CreatedAt: time.Now()}, nil
	}

	payload := map[string]string{"title": title, "body": body}
	var issue models.Issue
	path := fmt.Sprintf("/repos/%s/issues", repo.FullName())
	if err := c.do(ctx, "POST", path, nil, payload, &issue); err != nil {
		return nil, fmt.Errorf("create issue for %s: %w", repo.FullName(), err)
	}

	logger.Info("Created issue",
		zap.String("repo", repo.FullName()),
		zap.Int("number", issue.Number),
		zap.String("url", issue.HTMLURL))
	return &issue, nil
}

// CreateComment appends a comment to an issue; a no-op in dry-run mode.
func (c *Client) CreateComment(ctx context.Context, repo models.Repository, number int, body string) error {
	if c.dryRun {
		logger.Info("DRY RUN: would comment on issue",
			zap.String("repo", repo.FullName()),
			zap.Int("number", number))
		return nil
	}

	payload := map[string]string{"body": body}
	path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo.FullName(), number)
	if err := c.do(ctx, "POST", path, nil, payload, nil); err != nil {
		return fmt.Errorf("comment on %s#%d: %w", repo.FullName(), number, err)
	}

	logger.Info("Commented on issue",
		zap.String("repo", repo.FullName()),
		zap.Int("number", number))
	return nil
}

// CloseIssue retitles and closes an issue in one PATCH; a no-op in dry-run
// mode.
func (c *Client) CloseIssue(ctx context.Context, repo models.Repository, number int, title string) error {
	if c.dryRun {
		logger.Info("DRY RUN: would close issue",
			zap.String("repo", repo.FullName()),
			zap.Int("number", number),
			zap.String("title", title))
		return nil
	}

	payload := map[string]string{"state": "closed", "title": title}
	path := fmt.Sprintf("/repos/%s/issues/%d", repo.FullName(), number)
	if err := c.do(ctx, "PATCH", path, nil, payload, nil); err != nil {
		return fmt.Errorf("close %s#%d: %w", repo.FullName(), number, err)
	}

	logger.Info("Closed issue",
		zap.String("repo", repo.FullName()),
		zap.Int("number", number))
	return nil
}
