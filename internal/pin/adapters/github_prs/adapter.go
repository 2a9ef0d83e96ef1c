// Package githubprs opens pull requests for pin branches.
package githubprs

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/nathantilsley/chart-pin/internal/pin/domain"
	"github.com/nathantilsley/chart-pin/internal/platform/retry"
)

// Adapter implements ports.PullRequestPort against the GitHub pulls API.
type Adapter struct {
	api      *gogithub.Client
	retryCfg retry.Config
}

// New creates a new pull request adapter.
func New(api *gogithub.Client, retryCfg retry.Config) *Adapter {
	return &Adapter{api: api, retryCfg: retryCfg}
}

// EnsureOpen opens a pull request for params unless one is already open from
// the same head branch. An existing PR keeps its title and body; the force
// push that preceded this call already refreshed its commits. Only the list
// is retried: repeating a create on a flaky network could open duplicates.
func (a *Adapter) EnsureOpen(ctx context.Context, params domain.PullRequestParams) (string, bool, error) {
	owner, name, err := domain.SplitRepo(params.Repo)
	if err != nil {
		return "", false, err
	}

	var existing *gogithub.PullRequest
	err = retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		open, _, err := a.api.PullRequests.List(ctx, owner, name, &gogithub.PullRequestListOptions{
			State: "open",
			Head:  owner + ":" + params.Head,
		})
		if err != nil {
			return fmt.Errorf("listing open pull requests for %s: %w", params.Head, err)
		}
		existing = nil
		if len(open) > 0 {
			existing = open[0]
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.GetHTMLURL(), false, nil
	}

	pr, _, err := a.api.PullRequests.Create(ctx, owner, name, &gogithub.NewPullRequest{
		Title: gogithub.Ptr(params.Title),
		Head:  gogithub.Ptr(params.Head),
		Base:  gogithub.Ptr(params.Base),
		Body:  gogithub.Ptr(params.Body),
	})
	if err != nil {
		return "", false, fmt.Errorf("creating pull request for %s: %w", params.Head, err)
	}
	return pr.GetHTMLURL(), true, nil
}
