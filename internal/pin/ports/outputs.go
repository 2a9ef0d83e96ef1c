package ports

import (
	"context"

	"github.com/nathantilsley/chart-pin/api"
	"github.com/nathantilsley/chart-pin/internal/pin/domain"
)

// ManifestPort abstracts loading and saving the build manifest on disk.
type ManifestPort interface {
	Load(path string) (*api.Manifest, error)
	Save(path string, m *api.Manifest) error
}

// ReleasePort abstracts resolving release tags and commits on the hosting
// service.
type ReleasePort interface {
	// ResolveTag resolves the tag for a release version ("v<version>" then
	// the bare version) to a commit, dereferencing annotated tags.
	ResolveTag(ctx context.Context, repo, version string) (domain.ResolvedCommit, error)
	// ResolveCommit expands a short commit hash to the full SHA.
	ResolveCommit(ctx context.Context, repo, shortSHA string) (domain.ResolvedCommit, error)
}

// ChartIndexPort abstracts the Helm repository index lookup that maps an
// upstream version prefix to a released chart.
type ChartIndexPort interface {
	Lookup(ctx context.Context, chartRepo, chart, versionPrefix string) (domain.IndexEntry, error)
}

// DeployRepoPort abstracts branch lifecycle operations on the local
// deployment-repository checkout.
type DeployRepoPort interface {
	// Root is the absolute path of the checkout.
	Root() string
	Fetch(ctx context.Context) error
	// EnsureBranch checks out branch, reusing and rebasing the remote branch
	// onto base when it exists and recreating it from base when the rebase
	// conflicts. It reports whether the branch already existed on the remote.
	EnsureBranch(ctx context.Context, branch, base string) (existed bool, err error)
	// Commit stages paths and commits them, reporting the new commit SHA, or
	// ("", nil) when the staged tree is unchanged.
	Commit(ctx context.Context, message string, paths ...string) (sha string, err error)
	// Push force-pushes branch to the origin remote.
	Push(ctx context.Context, branch string) error
}

// PullRequestPort abstracts opening pull requests on the hosting service.
type PullRequestPort interface {
	// EnsureOpen opens a pull request unless one is already open for the same
	// head, reporting the PR URL and whether this call created it.
	EnsureOpen(ctx context.Context, params domain.PullRequestParams) (url string, created bool, err error)
}

// TagPort abstracts publishing a manifest as a parentless tagged commit.
type TagPort interface {
	// PublishManifest writes content as the only file of a history-free
	// commit and force-publishes tag pointing at it, replacing any previous
	// tag of that name locally and on the remote. It reports the commit SHA.
	PublishManifest(ctx context.Context, tag, file string, content []byte, message string) (sha string, err error)
}

// RevisionPort abstracts reading manifest content from arbitrary revisions of
// the deployment repository.
type RevisionPort interface {
	FileAt(revision, path string) ([]byte, error)
}

// DiffPort renders a unified diff between two manifest encodings for logs,
// dry runs and PR bodies.
type DiffPort interface {
	Unified(fromLabel, toLabel string, before, after []byte) string
}
