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

// SearchRepositoriesByTopic searches for repositories carrying the topic,
// optionally scoped to an organization via the search query itself. Pages
// are fetched until one comes back empty.
func (c *Client) SearchRepositoriesByTopic(ctx context.Context, topic, org string) ([]models.Repository, error) {
	q := "topic:" + topic
	if org != "" {
		q += " org:" + org
	}

	var repos []models.Repository
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("q", q)
		v.Set("per_page", strconv.Itoa(perPage))
		v.Set("page", strconv.Itoa(page))

		var resp struct {
			TotalCount int `json:"total_count"`
			Items      []struct {
				FullName string `json:"full_name"`
			} `json:"items"`
		}
		if err := c.get(ctx, "/search/repositories", v, &resp); err != nil {
			return nil, fmt.Errorf("search repositories by topic %q: %w", topic, err)
		}
		if len(resp.Items) == 0 {
			break
		}
		for _, item := range resp.Items {
			repo, err := models.ParseRepository(item.FullName)
			if err != nil {
				logger.Warn("Skipping unparsable search result", zap.String("full_name", item.FullName))
				continue
			}
			repos = append(repos, repo)
		}
	}

	logger.Info("Topic search complete",
		zap.String("topic", topic),
		zap.String("org", org),
		zap.Int("count", len(repos)))
	return repos, nil
}

// ListOrgRepositories enumerates every repository in an organization.
func (c *Client) ListOrgRepositories(ctx context.Context, org string) ([]models.Repository, error) {
	var repos []models.Repository
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("per_page", strconv.Itoa(perPage))
		v.Set("page", strconv.Itoa(page))

		var items []struct {
			FullName string `json:"full_name"`
			Archived bool   `json:"archived"`
		}
		if err := c.get(ctx, "/orgs/"+org+"/repos", v, &items); err != nil {
			return nil, fmt.Errorf("list repositories for org %q: %w", org, err)
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			if item.Archived {
				continue
			}
			repo, err := models.ParseRepository(item.FullName)
			if err != nil {
				continue
			}
			repos = append(repos, repo)
		}
	}
	return repos, nil
}

// ListRepositoryTopics fetches the topic list of a single repository.
func (c *Client) ListRepositoryTopics(ctx context.Context, repo models.Repository) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	path := fmt.Sprintf("/repos/%s/topics", repo.FullName())
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list topics for %s: %w", repo.FullName(), err)
	}
	return resp.Names, nil
}
