// addon-notifier audits DDEV add-on repositories for disabled test
// workflows and manages owner notifications through tracking issues.
// Exit codes: 0 normal, 2 run degraded by rate limiting, 5 missing
// credential, 1 usage error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/config"
	"github.com/ddev/ddev-add-on-monitoring/github"
	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/notify"
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
		Use:           "addon-notifier",
		Short:         "Notify add-on owners about disabled test workflows",
		Long:          "addon-notifier finds repositories tagged as DDEV add-ons whose test workflow\nis disabled and notifies the owners through tracking issues, with cooldown and\na bounded number of reminders.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runNotifier(flags)
			exitCode = code
			return err
		},
	}

	root.Flags().StringVar(&flags.GitHubToken, "github-token", "", "GitHub API token (or GITHUB_TOKEN env)")
	root.Flags().StringVar(&flags.Org, "org", "", "Limit to one GitHub organization (\"all\" for no limit)")
	root.Flags().StringVar(&flags.AdditionalRepos, "additional-github-repos", "", "Comma-separated owner/repo list to process additionally")
	root.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Report what would happen without creating or changing issues")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrMissingToken) {
			return 5
		}
		return 1
	}
	return exitCode
}

func runNotifier(flags config.Flags) (int, error) {
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
	client := github.NewClient(cfg.GitHubToken, budget, cfg.DryRun)

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
		if github.IsRateLimit(err) {
			fmt.Fprintln(os.Stderr, "Run aborted: rate limited while resolving repositories")
			return 2, nil
		}
		return 0, fmt.Errorf("resolving repositories: %w", err)
	}

	machine := notify.New(client, cfg.MaxNotifications, cfg.NotificationIntervalDays, cfg.RenotificationCooldownDays)
	notifier := runner.NewNotifier(client, machine, cfg.TestWorkflowName, cfg.DryRun, os.Stdout)
	result := notifier.Run(ctx, repos)
	return result.ExitCode(), nil
}
