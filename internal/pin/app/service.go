// Package app wires the pin domain logic to its ports. PinService is the
// single application service behind every CLI command: it plans manifest
// updates, applies them to a working copy and publishes the result either
// as a pull request branch or as an orphan tag.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathantilsley/chart-pin/api"
	"github.com/nathantilsley/chart-pin/internal/pin/domain"
	"github.com/nathantilsley/chart-pin/internal/pin/ports"
)

// PinService implements the ports.PinUseCase, ports.SetUseCase,
// ports.CherryPickUseCase and ports.ValidateUseCase interfaces.
type PinService struct {
	manifests ports.ManifestPort
	releases  ports.ReleasePort
	index     ports.ChartIndexPort
	deploy    ports.DeployRepoPort
	prs       ports.PullRequestPort
	tags      ports.TagPort
	revisions ports.RevisionPort
	differ    ports.DiffPort

	logger *slog.Logger
	tracer trace.Tracer
	clock  clockwork.Clock
	out    io.Writer

	runs      metric.Int64Counter
	noops     metric.Int64Counter
	staleMeta metric.Int64Counter

	repo   string
	runURL string
}

// NewPinService creates a PinService. Ports a caller's commands never reach
// may be nil: set and validate only need the manifest port, cherry-pick only
// the revision port. repo is the owner/name pull requests are opened against
// and runURL, when not empty, is linked from pull request bodies.
func NewPinService(
	manifests ports.ManifestPort,
	releases ports.ReleasePort,
	index ports.ChartIndexPort,
	deploy ports.DeployRepoPort,
	prs ports.PullRequestPort,
	tags ports.TagPort,
	revisions ports.RevisionPort,
	differ ports.DiffPort,
	logger *slog.Logger,
	meter metric.Meter,
	tracer trace.Tracer,
	clock clockwork.Clock,
	out io.Writer,
	repo string,
	runURL string,
) *PinService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	runs, _ := meter.Int64Counter("chart_pin.runs",
		metric.WithDescription("Pin runs started, by mode"))
	noops, _ := meter.Int64Counter("chart_pin.noops",
		metric.WithDescription("Pin runs that found the manifest already up to date"))
	staleMeta, _ := meter.Int64Counter("chart_pin.stale_metadata",
		metric.WithDescription("Chart entries whose commit metadata could not be refreshed"))

	return &PinService{
		manifests: manifests,
		releases:  releases,
		index:     index,
		deploy:    deploy,
		prs:       prs,
		tags:      tags,
		revisions: revisions,
		differ:    differ,
		logger:    logger,
		tracer:    tracer,
		clock:     clock,
		out:       out,
		runs:      runs,
		noops:     noops,
		staleMeta: staleMeta,
		repo:      repo,
		runURL:    runURL,
	}
}

// Execute runs one pin operation end to end: plan the manifest changes,
// then publish them according to the requested mode.
func (s *PinService) Execute(ctx context.Context, req domain.PinRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "pin.execute",
		trace.WithAttributes(
			attribute.String("pin.mode", req.Mode.String()),
			attribute.Bool("pin.dry_run", req.DryRun),
		))
	defer span.End()

	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", req.Mode.String())))

	switch req.Mode {
	case domain.ModeBranch:
		return s.executeBranch(ctx, req)
	case domain.ModeOrphan:
		return s.executeOrphan(ctx, req)
	default:
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
}

func (s *PinService) executeBranch(ctx context.Context, req domain.PinRequest) error {
	if s.repo == "" && !req.DryRun {
		return errors.New("no repository configured for pull requests, set GITHUB_REPOSITORY")
	}

	branch := req.TargetBranch
	if branch == "" {
		branch = domain.BranchName(req.Version, req.BaseBranch, req.Pins, s.clock.Now())
	}

	if err := s.deploy.Fetch(ctx); err != nil {
		return fmt.Errorf("fetching deployment repo: %w", err)
	}
	branchExisted, err := s.deploy.EnsureBranch(ctx, branch, req.BaseBranch)
	if err != nil {
		return fmt.Errorf("preparing branch %s: %w", branch, err)
	}
	if branchExisted {
		s.logger.Info("reusing existing pin branch", "branch", branch, "base", req.BaseBranch)
	} else {
		s.logger.Info("created pin branch", "branch", branch, "base", req.BaseBranch)
	}

	path := filepath.Join(s.deploy.Root(), req.ManifestFile)
	manifest, err := s.manifests.Load(path)
	if err != nil {
		return err
	}

	plan, updated, err := s.buildPlan(ctx, req, manifest)
	if err != nil {
		return err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("pin.changes", len(plan.Changes)))

	if plan.Empty() {
		s.noops.Add(ctx, 1)
		s.logger.Info("manifest already up to date", "branch", branch)
		if req.DryRun {
			fmt.Fprintln(s.out, "Manifest already up to date, nothing to do.")
			return nil
		}
		// The branch may carry a stale commit from an earlier run whose
		// changes have since landed on the base. Push so the open pull
		// request rebases down to an empty diff instead of going stale.
		if branchExisted {
			if err := s.deploy.Push(ctx, branch); err != nil {
				return fmt.Errorf("pushing branch %s: %w", branch, err)
			}
		}
		return nil
	}

	before, err := manifest.Encode()
	if err != nil {
		return fmt.Errorf("encoding current manifest: %w", err)
	}
	after, err := updated.Encode()
	if err != nil {
		return fmt.Errorf("encoding updated manifest: %w", err)
	}
	diff := s.differ.Unified(req.ManifestFile, req.ManifestFile, before, after)

	s.logger.Info("computed pin plan", "branch", branch, "changes", len(plan.Changes))
	if req.DryRun {
		fmt.Fprintf(s.out, "Planned changes (dry run):\n\n%s\n%s\n", plan.Summary(), diff)
		return nil
	}

	if err := s.manifests.Save(path, updated); err != nil {
		return err
	}
	message := domain.CommitMessage(req.Version, req.Pins)
	sha, err := s.deploy.Commit(ctx, message, req.ManifestFile)
	if err != nil {
		return fmt.Errorf("committing manifest: %w", err)
	}
	if err := s.deploy.Push(ctx, branch); err != nil {
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}
	s.logger.Info("pushed manifest update", "branch", branch, "commit", sha)

	url, created, err := s.prs.EnsureOpen(ctx, domain.PullRequestParams{
		Repo:  s.repo,
		Head:  branch,
		Base:  req.BaseBranch,
		Title: message,
		Body:  s.pullRequestBody(plan, diff),
	})
	if err != nil {
		return fmt.Errorf("ensuring pull request: %w", err)
	}
	if created {
		s.logger.Info("opened pull request", "url", url)
	} else {
		s.logger.Info("pull request already open", "url", url)
	}
	return nil
}

func (s *PinService) executeOrphan(ctx context.Context, req domain.PinRequest) error {
	path := filepath.Join(s.deploy.Root(), req.ManifestFile)
	manifest, err := s.manifests.Load(path)
	if err != nil {
		return err
	}

	plan, updated, err := s.buildPlan(ctx, req, manifest)
	if err != nil {
		return err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("pin.changes", len(plan.Changes)))

	tag := req.Tag
	if tag == "" {
		tag = domain.TagName(req.Version, req.Pins, s.clock.Now())
	}

	if plan.Empty() {
		s.noops.Add(ctx, 1)
		s.logger.Info("manifest already up to date", "tag", tag)
		if req.DryRun {
			fmt.Fprintln(s.out, "Manifest already up to date, nothing to do.")
		}
		return nil
	}

	after, err := updated.Encode()
	if err != nil {
		return fmt.Errorf("encoding updated manifest: %w", err)
	}

	if req.DryRun {
		before, err := manifest.Encode()
		if err != nil {
			return fmt.Errorf("encoding current manifest: %w", err)
		}
		diff := s.differ.Unified(req.ManifestFile, req.ManifestFile, before, after)
		fmt.Fprintf(s.out, "Planned changes (dry run), would publish tag %s:\n\n%s\n%s\n", tag, plan.Summary(), diff)
		return nil
	}

	message := domain.CommitMessage(req.Version, req.Pins)
	sha, err := s.tags.PublishManifest(ctx, tag, req.ManifestFile, after, message)
	if err != nil {
		return fmt.Errorf("publishing tag %s: %w", tag, err)
	}
	s.logger.Info("published manifest tag", "tag", tag, "commit", sha, "changes", len(plan.Changes))
	return nil
}

// Set applies literal field assignments to one chart entry and writes the
// manifest back, creating the entry when it does not exist yet.
func (s *PinService) Set(ctx context.Context, req domain.SetRequest) error {
	_, span := s.tracer.Start(ctx, "pin.set",
		trace.WithAttributes(attribute.String("pin.chart", req.Chart)))
	defer span.End()

	if req.Chart == "" {
		return fmt.Errorf("%w: chart name must not be empty", domain.ErrInvalidAssignment)
	}
	if len(req.Assignments) == 0 {
		return fmt.Errorf("%w: no key=value pairs given", domain.ErrInvalidAssignment)
	}

	manifest, err := s.manifests.Load(req.ManifestPath)
	if err != nil {
		return err
	}
	domain.ApplyAssignments(manifest, req.Chart, req.Assignments)
	if err := s.manifests.Save(req.ManifestPath, manifest); err != nil {
		return err
	}
	s.logger.Info("updated manifest entry", "chart", req.Chart, "fields", len(req.Assignments))
	return nil
}

// CherryPick copies the named chart entries from the manifest at the source
// revision into the manifest at the target revision and returns the merged
// manifest. Nothing is written: the caller decides what to do with it.
func (s *PinService) CherryPick(ctx context.Context, req domain.CherryPickRequest) ([]byte, error) {
	_, span := s.tracer.Start(ctx, "pin.cherrypick",
		trace.WithAttributes(
			attribute.String("pin.target", req.Target),
			attribute.String("pin.source", req.Source),
		))
	defer span.End()

	if req.Target == "" || req.Source == "" {
		return nil, errors.New("target and source revisions must not be empty")
	}
	if len(req.Charts) == 0 {
		return nil, errors.New("no charts named to cherry-pick")
	}

	target, err := s.manifestAt(req.Target, req.ManifestFile)
	if err != nil {
		return nil, err
	}
	source, err := s.manifestAt(req.Source, req.ManifestFile)
	if err != nil {
		return nil, err
	}

	for _, name := range req.Charts {
		entry, ok := source.Chart(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no entry at %s", domain.ErrChartNotFound, name, req.Source)
		}
		target.SetChart(name, entry.Clone())
	}
	s.logger.Info("cherry-picked manifest entries",
		"charts", len(req.Charts), "source", req.Source, "target", req.Target)
	return target.Encode()
}

// Validate checks a manifest file against the schema rules and returns the
// first violation found.
func (s *PinService) Validate(ctx context.Context, manifestPath string) error {
	_, span := s.tracer.Start(ctx, "pin.validate")
	defer span.End()

	manifest, err := s.manifests.Load(manifestPath)
	if err != nil {
		return err
	}
	if err := domain.ValidateManifest(manifest); err != nil {
		return err
	}
	s.logger.Info("manifest valid", "path", manifestPath, "charts", len(manifest.ChartNames()))
	return nil
}

func (s *PinService) manifestAt(revision, file string) (*api.Manifest, error) {
	raw, err := s.revisions.FileAt(revision, file)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", file, revision, err)
	}
	m, err := api.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s at %s: %w", file, revision, err)
	}
	return m, nil
}

// buildPlan computes the updated manifest without touching the original.
// The version pin is applied first, then each chart pin in order, so a
// later pin sees the effect of an earlier one.
func (s *PinService) buildPlan(ctx context.Context, req domain.PinRequest, manifest *api.Manifest) (domain.Plan, *api.Manifest, error) {
	updated := manifest.Clone()
	plan := &domain.Plan{}

	if req.Version != "" {
		if err := s.planVersionPin(ctx, req, updated, plan); err != nil {
			return domain.Plan{}, nil, err
		}
	}
	for _, pin := range req.Pins {
		if err := s.planChartPin(ctx, pin, updated, plan); err != nil {
			return domain.Plan{}, nil, err
		}
	}
	return *plan, updated, nil
}

// planVersionPin moves every chart that sits at the reference chart's
// current version to req.Version, stamping the release commit metadata.
// When the release tag cannot be resolved the version still moves but the
// previous commit metadata is kept.
func (s *PinService) planVersionPin(ctx context.Context, req domain.PinRequest, updated *api.Manifest, plan *domain.Plan) error {
	reference, ok := updated.Chart(req.ReferenceChart)
	if !ok {
		return fmt.Errorf("%w: reference chart %q not in manifest", domain.ErrChartNotFound, req.ReferenceChart)
	}
	current := reference.Version

	stale := false
	var resolved domain.ResolvedCommit
	res, err := s.releases.ResolveTag(ctx, req.ReleaseRepo, req.Version)
	switch {
	case errors.Is(err, domain.ErrReleaseNotFound):
		stale = true
		s.staleMeta.Add(ctx, 1)
		s.logger.Warn("release tag not found, keeping existing commit metadata",
			"repo", req.ReleaseRepo, "version", req.Version)
	case err != nil:
		return fmt.Errorf("resolving release %s: %w", req.Version, err)
	default:
		resolved = res
	}

	for _, name := range updated.ChartNames() {
		old, _ := updated.Chart(name)
		if old.Version != current {
			continue
		}
		next := old.Clone()
		next.Version = req.Version
		if !stale {
			next.Meta = map[string]string{
				api.MetaCommit:    resolved.SHA,
				api.MetaCommitURL: resolved.URL,
			}
		}
		s.applyChange(plan, updated, name, old, next, true, stale)
	}
	return nil
}

// planChartPin pins a single chart to the latest index entry matching its
// release tag prefix and resolves the entry's short commit hash against the
// chart's hosting repo. Unresolvable hashes degrade to keeping the previous
// metadata, like planVersionPin.
func (s *PinService) planChartPin(ctx context.Context, pin domain.ChartPin, updated *api.Manifest, plan *domain.Plan) error {
	entry, err := s.index.Lookup(ctx, pin.ChartRepo, pin.Chart, pin.VersionPrefix())
	if err != nil {
		return fmt.Errorf("looking up chart %s: %w", pin.Chart, err)
	}

	old, oldExists := updated.Chart(pin.Chart)
	next := old.Clone()
	next.Repo = entry.RepoURL
	next.Version = entry.ChartVersion

	stale := false
	if entry.ShortSHA == "" {
		stale = true
		s.staleMeta.Add(ctx, 1)
		s.logger.Warn("index entry has no commit hash, keeping existing commit metadata",
			"chart", pin.Chart, "chartVersion", entry.ChartVersion)
	} else {
		resolved, err := s.releases.ResolveCommit(ctx, pin.HostingRepo, entry.ShortSHA)
		switch {
		case errors.Is(err, domain.ErrCommitNotFound):
			stale = true
			s.staleMeta.Add(ctx, 1)
			s.logger.Warn("commit hash not found, keeping existing commit metadata",
				"chart", pin.Chart, "repo", pin.HostingRepo, "hash", entry.ShortSHA)
		case err != nil:
			return fmt.Errorf("resolving commit for %s: %w", pin.Chart, err)
		default:
			next.Meta = map[string]string{
				api.MetaCommit:     resolved.SHA,
				api.MetaCommitURL:  resolved.URL,
				api.MetaAppVersion: entry.AppVersion,
			}
		}
	}

	s.applyChange(plan, updated, pin.Chart, old, next, oldExists, stale)
	return nil
}

// applyChange records one planned chart update, dropping no-ops so an
// unchanged manifest yields an empty plan.
func (s *PinService) applyChange(plan *domain.Plan, updated *api.Manifest, name string, old, next api.Chart, oldExists, stale bool) {
	if oldExists && next.Equal(old) {
		return
	}
	updated.SetChart(name, next)
	plan.Changes = append(plan.Changes, domain.Change{
		Chart:     name,
		Old:       old,
		New:       next,
		OldExists: oldExists,
		StaleMeta: stale,
	})
}

// pullRequestBody renders the PR description: the plan summary, a note for
// charts whose commit metadata went stale, the manifest diff and a link
// back to the CI run that opened the PR.
func (s *PinService) pullRequestBody(plan domain.Plan, diff string) string {
	var b strings.Builder
	b.WriteString("Automated chart pin.\n\n```\n")
	b.WriteString(plan.Summary())
	b.WriteString("```\n")
	if stale := plan.StaleCharts(); len(stale) > 0 {
		fmt.Fprintf(&b, "\n> Commit metadata for %s could not be refreshed and was kept from the previous entry.\n",
			strings.Join(stale, ", "))
	}
	if diff != "" {
		b.WriteString("\n<details><summary>Manifest diff</summary>\n\n```diff\n")
		b.WriteString(diff)
		b.WriteString("\n```\n\n</details>\n")
	}
	if s.runURL != "" {
		fmt.Fprintf(&b, "\nCreated by [this CI run](%s).\n", s.runURL)
	}
	return b.String()
}
