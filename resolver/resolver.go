// Package resolver produces the deduplicated set of repositories to
// evaluate, merging topic search results, the static critical-infra list,
// and caller-supplied extras.
package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

// Gateway is the slice of the API client the resolver needs.
type Gateway interface {
	SearchRepositoriesByTopic(ctx context.Context, topic, org string) ([]models.Repository, error)
	ListOrgRepositories(ctx context.Context, org string) ([]models.Repository, error)
	ListRepositoryTopics(ctx context.Context, repo models.Repository) ([]string, error)
}

// CriticalInfraRepos are always audited even when the topic search misses
// them; they carry the add-on testing machinery itself.
var CriticalInfraRepos = []string{
	"ddev/github-action-add-on-test",
	"ddev/ddev-addon-template",
}

// Options controls how the repository set is built.
type Options struct {
	Topic string
	// Org scopes discovery to one organization; empty means unscoped.
	Org string
	// StaticList entries are appended, owner-filtered when Org is set.
	StaticList []string
	// ExtraRepos are appended unconditionally.
	ExtraRepos []models.Repository
}

// Resolve builds the sorted, deduplicated repository set.
func Resolve(ctx context.Context, gw Gateway, opts Options) ([]models.Repository, error) {
	repos, err := gw.SearchRepositoriesByTopic(ctx, opts.Topic, opts.Org)
	if err != nil {
		return nil, fmt.Errorf("topic search: %w", err)
	}

	// Search indexing can lag behind topic changes. When scoped to an org,
	// an empty result falls back to enumerating the org and checking each
	// repository's topic list directly.
	if len(repos) == 0 && opts.Org != "" {
		logger.Warn("Topic search returned nothing, falling back to org enumeration",
			zap.String("topic", opts.Topic),
			zap.String("org", opts.Org))
		repos, err = resolveByOrgEnumeration(ctx, gw, opts.Topic, opts.Org)
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range opts.StaticList {
		repo, err := models.ParseRepository(entry)
		if err != nil {
			logger.Warn("Skipping invalid static list entry", zap.String("entry", entry))
			continue
		}
		if opts.Org != "" && !strings.EqualFold(repo.Owner, opts.Org) {
			continue
		}
		repos = append(repos, repo)
	}

	repos = append(repos, opts.ExtraRepos...)

	result := dedupeSorted(repos)
	logger.Info("Resolved repository set",
		zap.String("topic", opts.Topic),
		zap.String("org", opts.Org),
		zap.Int("count", len(result)))
	return result, nil
}

func resolveByOrgEnumeration(ctx context.Context, gw Gateway, topic, org string) ([]models.Repository, error) {
	candidates, err := gw.ListOrgRepositories(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("org enumeration fallback: %w", err)
	}

	var repos []models.Repository
	for _, repo := range candidates {
		topics, err := gw.ListRepositoryTopics(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("org enumeration fallback: %w", err)
		}
		if slices.Contains(topics, topic) {
			repos = append(repos, repo)
		}
	}
	return repos, nil
}

func dedupeSorted(repos []models.Repository) []models.Repository {
	seen := make(map[string]bool, len(repos))
	result := make([]models.Repository, 0, len(repos))
	for _, repo := range repos {
		key := repo.FullName()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, repo)
	}
	slices.SortFunc(result, func(a, b models.Repository) int {
		return strings.Compare(a.FullName(), b.FullName())
	})
	return result
}
