// Package deployrepo drives the branch lifecycle on the local
// deployment-repository checkout through the git CLI.
package deployrepo

import (
	"context"
	"log/slog"
	"os"

	"github.com/nathantilsley/chart-pin/internal/platform/gitcmd"
)

// Adapter implements ports.DeployRepoPort by shelling out to git. Rebase and
// checkout have no usable library equivalent, so the whole working-tree side
// stays on the CLI.
type Adapter struct {
	git    *gitcmd.Runner
	logger *slog.Logger
}

// New creates a new deploy repo adapter over an existing checkout.
func New(git *gitcmd.Runner, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Adapter{git: git, logger: logger}
}

// Root is the absolute path of the checkout.
func (a *Adapter) Root() string {
	return a.git.Dir()
}

// Fetch updates remote-tracking refs, pruning branches deleted upstream.
func (a *Adapter) Fetch(ctx context.Context) error {
	_, err := a.git.Run(ctx, "fetch", "--prune", "origin")
	return err
}

// EnsureBranch checks out branch for mutation. A branch already on the remote
// is reused and rebased onto base so earlier pins survive; when the rebase
// conflicts the branch is recreated from base instead. A branch unknown to
// the remote is created fresh from base.
func (a *Adapter) EnsureBranch(ctx context.Context, branch, base string) (bool, error) {
	existed, _ := a.git.Succeeds(ctx, "rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	if !existed {
		_, err := a.git.Run(ctx, "checkout", "-B", branch, "refs/remotes/origin/"+base)
		return false, err
	}

	if _, err := a.git.Run(ctx, "checkout", "-B", branch, "refs/remotes/origin/"+branch); err != nil {
		return true, err
	}
	if _, err := a.git.Run(ctx, "rebase", "refs/remotes/origin/"+base); err != nil {
		a.logger.Warn("rebase conflicts, recreating branch from base",
			"branch", branch, "base", base)
		if _, abortErr := a.git.Run(ctx, "rebase", "--abort"); abortErr != nil {
			return true, abortErr
		}
		if _, err := a.git.Run(ctx, "checkout", "-B", branch, "refs/remotes/origin/"+base); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Commit stages paths and commits them. An unchanged staged tree commits
// nothing and reports an empty SHA.
func (a *Adapter) Commit(ctx context.Context, message string, paths ...string) (string, error) {
	args := append([]string{"add", "--"}, paths...)
	if _, err := a.git.Run(ctx, args...); err != nil {
		return "", err
	}
	if clean, _ := a.git.Succeeds(ctx, "diff", "--cached", "--quiet"); clean {
		return "", nil
	}
	if _, err := a.git.Run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return a.git.Run(ctx, "rev-parse", "HEAD")
}

// Push force-pushes branch to origin. Force is required because a recreated
// or rebased branch rewrites the remote history.
func (a *Adapter) Push(ctx context.Context, branch string) error {
	_, err := a.git.Run(ctx, "push", "--force", "origin", branch)
	return err
}
