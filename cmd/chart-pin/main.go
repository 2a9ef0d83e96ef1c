package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/nathantilsley/chart-pin/api"
	"github.com/nathantilsley/chart-pin/internal/pin/domain"
	"github.com/nathantilsley/chart-pin/internal/platform/config"
	"github.com/nathantilsley/chart-pin/internal/platform/logger"
	"github.com/nathantilsley/chart-pin/internal/platform/telemetry"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := rootCommand(stdout)
	cmd.Writer = stdout
	cmd.ErrWriter = stderr

	if err := cmd.Run(ctx, args); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err)
		return exitCode(err)
	}
	// Help output exits 2, same as usage errors, so scripts cannot mistake
	// an informational run for a completed one.
	if len(args) < 2 || helpRequested(args) {
		return 2
	}
	return 0
}

// usageError marks errors that should exit 2 instead of 1.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func exitCode(err error) int {
	var usage usageError
	if errors.As(err, &usage) ||
		errors.Is(err, domain.ErrInvalidPinSpec) ||
		errors.Is(err, domain.ErrInvalidAssignment) {
		return 2
	}
	return 1
}

func helpRequested(args []string) bool {
	for _, arg := range args[1:] {
		if arg == "--" {
			return false
		}
		if arg == "--help" || arg == "-h" || arg == "help" {
			return true
		}
	}
	return false
}

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return usageError{err}
}

// Flags shared by every subcommand. One invocation parses exactly one
// subcommand, so the instances can be shared.
var (
	fileFlag = &cli.StringFlag{
		Name:  "file",
		Value: api.DefaultFile,
		Usage: "Manifest path relative to the working directory",
	}
	workdirFlag = &cli.StringFlag{
		Name:  "workdir",
		Value: ".",
		Usage: "Deployment repository checkout to operate in",
	}
)

func rootCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "chart-pin",
		Usage: "Pin Helm chart versions in a deployment manifest",
		Commands: []*cli.Command{
			pinCmd(stdout),
			setCmd(stdout),
			cherryPickCmd(stdout),
			validateCmd(stdout),
		},
		OnUsageError: onUsageError,
	}
}

func pinCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "pin",
		Usage: "Pin chart versions and publish the updated manifest",
		Description: `Pins chart versions in the manifest and publishes the result.

A version pin (--version, --reference-chart, --release-repo) moves every
chart sitting at the reference chart's current version to the given release
version and stamps the release commit's SHA and URL into each entry.

A chart pin (--chart-pin chart:tag:chartRepo:owner/repo, repeatable) looks
the chart up in the chart repository index, takes the newest entry whose
upstream app version matches the tag, and resolves the short commit hash
embedded in the entry against the hosting repository.

With --mode branch (default) the updated manifest is committed on a managed
branch and a pull request is opened against --base-branch. With
--mode orphan it is published as a parentless tagged commit instead.

# Examples

Pin the wire-server release train:
  chart-pin pin --version 5.23.0 --reference-chart wire-server \
    --release-repo wireapp/wire-server

Pin one chart from its index and publish as a tag:
  chart-pin pin --chart-pin coturn:v4.6.2:wire:wireapp/coturn --mode orphan`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "version",
				Usage: "Release version to pin matching charts to",
			},
			&cli.StringFlag{
				Name:  "reference-chart",
				Usage: "Chart whose current version selects the charts a version pin moves",
			},
			&cli.StringFlag{
				Name:  "release-repo",
				Usage: "owner/name repository hosting the release tag for --version",
			},
			&cli.StringSliceFlag{
				Name:  "chart-pin",
				Usage: "Chart pin tuple chart:tag:chartRepo:owner/repo (repeatable)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Value: "branch",
				Usage: "How the result is published: branch (commit and PR) or orphan (parentless tagged commit)",
			},
			fileFlag,
			&cli.StringFlag{
				Name:  "base-branch",
				Value: "main",
				Usage: "Branch the pull request targets",
			},
			&cli.StringFlag{
				Name:  "target-branch",
				Usage: "Override the derived branch name",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "Override the derived tag name",
			},
			workdirFlag,
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report the plan without writing, committing, pushing or opening a PR",
			},
		},
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runPin(ctx, cmd, stdout)
		},
	}
}

func runPin(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	pins, err := domain.ParseChartPins(cmd.StringSlice("chart-pin"))
	if err != nil {
		return err
	}
	mode, err := domain.ParseMode(cmd.String("mode"))
	if err != nil {
		return usageError{err}
	}

	cfg, log, tel, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(ctx, tel, log)

	if len(pins) > 0 && cfg.Core.ChartIndexBaseURL == "" {
		return usageError{errors.New("CHART_INDEX_BASE_URL must be set when --chart-pin is used")}
	}

	svc, err := newPinService(cfg, log, tel, cmd.String("workdir"), stdout)
	if err != nil {
		return err
	}
	return svc.Execute(ctx, domain.PinRequest{
		Mode:           mode,
		Version:        cmd.String("version"),
		ReferenceChart: cmd.String("reference-chart"),
		ReleaseRepo:    cmd.String("release-repo"),
		Pins:           pins,
		ManifestFile:   cmd.String("file"),
		BaseBranch:     cmd.String("base-branch"),
		TargetBranch:   cmd.String("target-branch"),
		Tag:            cmd.String("tag"),
		DryRun:         cmd.Bool("dry-run"),
	})
}

func setCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set manifest entry fields directly",
		ArgsUsage: "key=value [meta.key=value]...",
		Description: `Updates fields of one chart entry in place, creating the entry when it
does not exist. Top-level fields are repo and version; meta.<key> pairs
replace the entry's whole metadata group.

# Example

  chart-pin set --chart coturn version=9.2.0 meta.commit=8f2a1bc...`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "chart",
				Required: true,
				Usage:    "Chart entry to update",
			},
			fileFlag,
			workdirFlag,
		},
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runSet(ctx, cmd, stdout)
		},
	}
}

func runSet(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	assigns, err := domain.ParseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}

	cfg, log, tel, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(ctx, tel, log)

	svc := newManifestService(cfg, log, tel, stdout)
	return svc.Set(ctx, domain.SetRequest{
		Chart:        cmd.String("chart"),
		Assignments:  assigns,
		ManifestPath: filepath.Join(cmd.String("workdir"), cmd.String("file")),
	})
}

func cherryPickCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "cherry-pick",
		Usage: "Copy chart entries between manifest revisions",
		Description: `Reads the manifest as it exists at two git revisions, copies the named
chart entries from the source revision into the target revision's manifest,
and prints the merged manifest to stdout. Revisions accept anything
git rev-parse would: a SHA, branch or tag.

# Example

  chart-pin cherry-pick --target prod --source main --chart webapp,wire-server`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "target",
				Required: true,
				Usage:    "Revision whose manifest receives the entries",
			},
			&cli.StringFlag{
				Name:     "source",
				Required: true,
				Usage:    "Revision whose manifest supplies the entries",
			},
			&cli.StringSliceFlag{
				Name:     "chart",
				Required: true,
				Usage:    "Chart entries to copy (repeatable or comma-separated)",
			},
			fileFlag,
			workdirFlag,
		},
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runCherryPick(ctx, cmd, stdout)
		},
	}
}

func runCherryPick(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	cfg, log, tel, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(ctx, tel, log)

	svc, err := newRevisionService(cfg, log, tel, cmd.String("workdir"), stdout)
	if err != nil {
		return err
	}
	merged, err := svc.CherryPick(ctx, domain.CherryPickRequest{
		Target:       cmd.String("target"),
		Source:       cmd.String("source"),
		Charts:       splitCharts(cmd.StringSlice("chart")),
		ManifestFile: cmd.String("file"),
	})
	if err != nil {
		return err
	}
	_, err = stdout.Write(merged)
	return err
}

func validateCmd(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check the manifest's structure",
		Description: `Checks every chart entry: repo must be a valid URL, version must be
non-empty, and when commit metadata is present the commit must be a full
40-character SHA with a valid commit URL. All violations are reported.`,
		Flags: []cli.Flag{
			fileFlag,
			workdirFlag,
		},
		OnUsageError: onUsageError,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runValidate(ctx, cmd, stdout)
		},
	}
}

func runValidate(ctx context.Context, cmd *cli.Command, stdout io.Writer) error {
	cfg, log, tel, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(ctx, tel, log)

	svc := newManifestService(cfg, log, tel, stdout)
	return svc.Validate(ctx, filepath.Join(cmd.String("workdir"), cmd.String("file")))
}

// bootstrap loads configuration and builds the logger and telemetry for one
// command invocation. It runs inside the action, not before cmd.Run, so
// --help works in an unconfigured environment.
func bootstrap(ctx context.Context) (config.Config, *slog.Logger, *telemetry.Telemetry, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.New(cfg.Core.LogLevel, cfg.Core.LogFormat)
	tel, err := telemetry.New(ctx, cfg.OTel.Enabled)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	return cfg, log, tel, nil
}

func shutdownTelemetry(ctx context.Context, tel *telemetry.Telemetry, log *slog.Logger) {
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn("telemetry shutdown failed", "error", err)
	}
}

func splitCharts(args []string) []string {
	var charts []string
	for _, arg := range args {
		for _, name := range strings.Split(arg, ",") {
			if name = strings.TrimSpace(name); name != "" {
				charts = append(charts, name)
			}
		}
	}
	return charts
}
