// Package main provides the chart-pin command for Helm chart version
// bookkeeping in a deployment manifest.
package main

import (
	"fmt"
	"io"
	"log/slog"

	chartindex "github.com/nathantilsley/chart-pin/internal/pin/adapters/chart_index"
	deployrepo "github.com/nathantilsley/chart-pin/internal/pin/adapters/deploy_repo"
	gitrevs "github.com/nathantilsley/chart-pin/internal/pin/adapters/git_revs"
	githubprs "github.com/nathantilsley/chart-pin/internal/pin/adapters/github_prs"
	linediff "github.com/nathantilsley/chart-pin/internal/pin/adapters/line_diff"
	manifestfile "github.com/nathantilsley/chart-pin/internal/pin/adapters/manifest_file"
	orphantag "github.com/nathantilsley/chart-pin/internal/pin/adapters/orphan_tag"
	releasetags "github.com/nathantilsley/chart-pin/internal/pin/adapters/release_tags"
	"github.com/nathantilsley/chart-pin/internal/pin/app"
	"github.com/nathantilsley/chart-pin/internal/platform/config"
	ghclient "github.com/nathantilsley/chart-pin/internal/platform/github"
	"github.com/nathantilsley/chart-pin/internal/platform/gitcmd"
	"github.com/nathantilsley/chart-pin/internal/platform/retry"
	"github.com/nathantilsley/chart-pin/internal/platform/telemetry"
)

// newPinService wires every port the pin workflow can reach: manifest IO,
// the hosting API, the chart index, the git checkout, pull requests and
// orphan tags. workdir must be a git checkout of the deployment repository.
func newPinService(cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry, workdir string, out io.Writer) (*app.PinService, error) {
	// Platform dependencies
	client, err := newGitHubClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	gitRunner, err := gitcmd.New(workdir, cfg.Core.GitAuthorName, cfg.Core.GitAuthorEmail)
	if err != nil {
		return nil, fmt.Errorf("opening deployment checkout: %w", err)
	}
	retryCfg := retryConfig(cfg)

	// Adapters
	releases, err := releasetags.New(client.API, &cfg.GitHub, retryCfg)
	if err != nil {
		return nil, fmt.Errorf("creating release resolver: %w", err)
	}
	index, err := chartindex.New(cfg.Core.ChartIndexBaseURL, retryCfg)
	if err != nil {
		return nil, fmt.Errorf("creating chart index client: %w", err)
	}
	tags, err := orphantag.New(workdir, client.Token, cfg.Core.GitAuthorName, cfg.Core.GitAuthorEmail, retryCfg)
	if err != nil {
		return nil, fmt.Errorf("opening tag publisher: %w", err)
	}

	return app.NewPinService(
		manifestfile.New(),
		releases,
		index,
		deployrepo.New(gitRunner, log),
		githubprs.New(client.API, retryCfg),
		tags,
		nil, // revision reads are cherry-pick only
		linediff.New(),
		log,
		tel.Meter,
		tel.Tracer,
		nil,
		out,
		cfg.GitHub.Repository,
		cfg.GitHub.RunURL(),
	), nil
}

// newManifestService wires manifest file IO only, which is all set and
// validate need. The working directory does not have to be a git checkout.
func newManifestService(cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry, out io.Writer) *app.PinService {
	return app.NewPinService(
		manifestfile.New(), nil, nil, nil, nil, nil, nil, nil,
		log, tel.Meter, tel.Tracer, nil, out,
		cfg.GitHub.Repository, cfg.GitHub.RunURL(),
	)
}

// newRevisionService wires the revision reader for cherry-pick.
func newRevisionService(cfg config.Config, log *slog.Logger, tel *telemetry.Telemetry, workdir string, out io.Writer) (*app.PinService, error) {
	revisions, err := gitrevs.New(workdir)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", workdir, err)
	}
	return app.NewPinService(
		manifestfile.New(), nil, nil, nil, nil, nil, revisions, nil,
		log, tel.Meter, tel.Tracer, nil, out,
		cfg.GitHub.Repository, cfg.GitHub.RunURL(),
	), nil
}

// newGitHubClient picks the auth mode: GitHub App credentials win over a
// token; with neither, API access is anonymous and rate-limited.
func newGitHubClient(cfg config.Config, log *slog.Logger) (*ghclient.Client, error) {
	gh := cfg.GitHub
	switch {
	case gh.HasAppAuth():
		return ghclient.NewAppClient(gh.ServerURL, gh.AppID, gh.InstallationID, gh.PrivateKey)
	case gh.Token != "":
		return ghclient.NewTokenClient(gh.ServerURL, gh.Token)
	default:
		log.Warn("no GitHub credentials configured, API access is anonymous")
		return ghclient.NewAnonymousClient(gh.ServerURL)
	}
}

func retryConfig(cfg config.Config) retry.Config {
	return retry.Config{
		Attempts:  cfg.Retry.Attempts,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}
}
