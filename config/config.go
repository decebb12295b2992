// Package config loads the runtime configuration from CLI flags and
// environment variables. Flags win over environment values.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ddev/ddev-add-on-monitoring/models"
)

// ErrMissingToken is returned when no GitHub token is supplied; the callers
// map it to the argument-error exit code before any network activity.
var ErrMissingToken = errors.New("github token is required (use --github-token or set GITHUB_TOKEN)")

// Flags holds the raw CLI flag values bound by cobra.
type Flags struct {
	GitHubToken     string
	Org             string
	AdditionalRepos string
	DryRun          bool
	PreRelease      bool
}

// Config holds all configuration for a run.
type Config struct {
	GitHubToken string
	// Org scopes discovery; empty means all organizations.
	Org        string
	ExtraRepos []models.Repository
	DryRun     bool

	Topic            string
	TestWorkflowName string

	MaxNotifications           int
	NotificationIntervalDays   int
	RenotificationCooldownDays int

	// StaleAfterDays is the checker staleness threshold: 7 days for the
	// periodic check, 1 day for the stricter pre-release check.
	StaleAfterDays int

	LogLevel string
}

// Load merges flags with environment overrides and validates.
func Load(flags Flags) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ADDON_TOPIC", "ddev-get")
	v.SetDefault("TEST_WORKFLOW_NAME", "tests")
	v.SetDefault("MAX_NOTIFICATIONS", 2)
	v.SetDefault("NOTIFICATION_INTERVAL_DAYS", 30)
	v.SetDefault("RENOTIFICATION_COOLDOWN_DAYS", 60)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		DryRun:                     flags.DryRun,
		Topic:                      v.GetString("ADDON_TOPIC"),
		TestWorkflowName:           v.GetString("TEST_WORKFLOW_NAME"),
		MaxNotifications:           v.GetInt("MAX_NOTIFICATIONS"),
		NotificationIntervalDays:   v.GetInt("NOTIFICATION_INTERVAL_DAYS"),
		RenotificationCooldownDays: v.GetInt("RENOTIFICATION_COOLDOWN_DAYS"),
		LogLevel:                   v.GetString("LOG_LEVEL"),
	}

	cfg.GitHubToken = flags.GitHubToken
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = v.GetString("GITHUB_TOKEN")
	}
	if cfg.GitHubToken == "" {
		return nil, ErrMissingToken
	}

	cfg.Org = flags.Org
	if cfg.Org == "" {
		cfg.Org = v.GetString("ORG")
	}
	// "all" is the explicit spelling of an unscoped run.
	if strings.EqualFold(cfg.Org, "all") {
		cfg.Org = ""
	}

	extras, err := parseRepoCSV(flags.AdditionalRepos)
	if err != nil {
		return nil, err
	}
	cfg.ExtraRepos = extras

	cfg.StaleAfterDays = 7
	if flags.PreRelease {
		cfg.StaleAfterDays = 1
	}

	if cfg.MaxNotifications < 1 {
		return nil, fmt.Errorf("MAX_NOTIFICATIONS must be at least 1, got %d", cfg.MaxNotifications)
	}

	return cfg, nil
}

func parseRepoCSV(csv string) ([]models.Repository, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var repos []models.Repository
	for _, entry := range strings.Split(csv, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		repo, err := models.ParseRepository(entry)
		if err != nil {
			return nil, fmt.Errorf("--additional-github-repos: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, nil
}
