// addon-checker audits the most recent scheduled test run of every DDEV
// add-on repository and encodes the worst observation in its exit code:
// 0 all healthy, 1 a run failed, 2 schedule stale, 3 no scheduled runs,
// 5 missing credential.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/config"
	"github.com/ddev/ddev-add-on-monitoring/github"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/resolver"
	"github.com/ddev/ddev-add-on-monitoring/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	var flags config.Flags
	exitCode := 0

	root := &cobra.Command{
		Use:           "addon-checker",
		Short:         "Check scheduled test runs of DDEV add-on repositories",
		Long:          "addon-checker finds repositories tagged as DDEV add-ons and verifies that\ntheir scheduled test workflows have run recently and succeeded.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runChecker(flags)
			exitCode = code
			return err
		},
	}

	root.Flags().StringVar(&flags.GitHubToken, "github-token", "", "GitHub API token (or GITHUB_TOKEN env)")
	root.Flags().StringVar(&flags.Org, "org", "", "Limit to one GitHub organization (\"all\" for no limit)")
	root.Flags().StringVar(&flags.AdditionalRepos, "additional-github-repos", "", "Comma-separated owner/repo list to check additionally")
	root.Flags().BoolVar(&flags.PreRelease, "pre-release", false, "Use the stricter 1-day staleness threshold")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrMissingToken) {
			return 5
		}
		return 1
	}
	return exitCode
}

func runChecker(flags config.Flags) (int, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return 0, err
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return 0, err
	}
	defer logger.Sync()

	ctx := context.Background()
	budget := github.NewRateBudget()
	client := github.NewClient(cfg.GitHubToken, budget, false)

	if _, err := client.FetchRateLimit(ctx); err != nil {
		logger.Warn("Could not fetch rate limit status, keeping conservative default", zap.Error(err))
	}

	repos, err := resolver.Resolve(ctx, client, resolver.Options{
		Topic:      cfg.Topic,
		Org:        cfg.Org,
		StaticList: resolver.CriticalInfraRepos,
		ExtraRepos: cfg.ExtraRepos,
	})
	if err != nil {
		return 0, fmt.Errorf("resolving repositories: %w", err)
	}

	staleAfter := time.Duration(cfg.StaleAfterDays) * 24 * time.Hour
	checker := runner.NewChecker(client, staleAfter, os.Stdout)
	result := checker.Run(ctx, repos)
	return result.ExitCode(), nil
}
