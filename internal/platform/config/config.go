// Package config provides application configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Core   CoreConfig
	GitHub GitHubConfig
	Retry  RetryConfig
	OTel   OTelConfig
}

// CoreConfig covers logging, the chart-index host, and the bot identity used
// for created commits.
type CoreConfig struct {
	LogLevel          string `env:"LOG_LEVEL, default=info"`
	LogFormat         string `env:"LOG_FORMAT, default=text"`
	ChartIndexBaseURL string `env:"CHART_INDEX_BASE_URL"`
	GitAuthorName     string `env:"GIT_AUTHOR_NAME, default=chart-pin"`
	GitAuthorEmail    string `env:"GIT_AUTHOR_EMAIL, default=chart-pin@users.noreply.github.com"`
}

// GitHubConfig covers hosting-API access and the CI run context. Token and
// App credentials are alternatives; App credentials travel together.
type GitHubConfig struct {
	ServerURL      string `env:"GITHUB_SERVER_URL, default=https://github.com"`
	Repository     string `env:"GITHUB_REPOSITORY"`
	RunID          string `env:"GITHUB_RUN_ID"`
	Token          string `env:"GITHUB_TOKEN"`
	AppID          int64  `env:"GITHUB_APP_ID"`
	InstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	PrivateKey     string `env:"GITHUB_PRIVATE_KEY"` // PEM file contents
}

// RetryConfig parameterizes backoff on network calls.
type RetryConfig struct {
	Attempts  int           `env:"RETRY_ATTEMPTS, default=5"`
	BaseDelay time.Duration `env:"RETRY_BASE_DELAY, default=1s"`
	MaxDelay  time.Duration `env:"RETRY_MAX_DELAY, default=30s"`
}

// OTelConfig controls telemetry export.
type OTelConfig struct {
	Enabled bool `env:"OTEL_ENABLED, default=false"`
}

// Load reads configuration from environment variables, applies defaults, and
// validates cross-field constraints.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Core.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Core.LogFormat)
	}
	if c.GitHub.Repository != "" && !strings.Contains(c.GitHub.Repository, "/") {
		return fmt.Errorf("GITHUB_REPOSITORY %q must be owner/name", c.GitHub.Repository)
	}
	if c.GitHub.AppID != 0 || c.GitHub.InstallationID != 0 || c.GitHub.PrivateKey != "" {
		if c.GitHub.AppID == 0 || c.GitHub.InstallationID == 0 || c.GitHub.PrivateKey == "" {
			return fmt.Errorf("GitHub App auth requires GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_PRIVATE_KEY together")
		}
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	return nil
}

// HasAppAuth reports whether GitHub App credentials are configured.
func (c *GitHubConfig) HasAppAuth() bool {
	return c.AppID != 0
}

// HasAuth reports whether any GitHub credential is configured.
func (c *GitHubConfig) HasAuth() bool {
	return c.Token != "" || c.HasAppAuth()
}

// IsEnterprise reports whether the server is something other than public
// github.com.
func (c *GitHubConfig) IsEnterprise() bool {
	return strings.TrimSuffix(c.ServerURL, "/") != "https://github.com"
}

// RunURL builds the link to the CI run for PR bodies, or "" when no run
// context is present.
func (c *GitHubConfig) RunURL() string {
	if c.Repository == "" || c.RunID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", strings.TrimSuffix(c.ServerURL, "/"), c.Repository, c.RunID)
}

// CommitURL builds a browsable commit link on the hosting server.
func (c *GitHubConfig) CommitURL(repo, sha string) string {
	return fmt.Sprintf("%s/%s/commit/%s", strings.TrimSuffix(c.ServerURL, "/"), repo, sha)
}
