// Package releasetags resolves release versions to commits via the hosting
// service's git-data API.
package releasetags

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nathantilsley/chart-pin/internal/pin/domain"
	"github.com/nathantilsley/chart-pin/internal/platform/config"
	"github.com/nathantilsley/chart-pin/internal/platform/retry"
)

const cacheSize = 128

// maxTagDepth bounds annotated-tag dereferencing. Tags pointing at tags
// deeper than this are treated as unresolvable.
const maxTagDepth = 5

// Adapter implements ports.ReleasePort against the GitHub git-data API.
// Resolutions are memoized so repeated pins within one run hit the API once.
type Adapter struct {
	api      *gogithub.Client
	gh       *config.GitHubConfig
	retryCfg retry.Config
	cache    *lru.Cache[string, domain.ResolvedCommit]
}

// New creates a new release tag resolver.
func New(api *gogithub.Client, gh *config.GitHubConfig, retryCfg retry.Config) (*Adapter, error) {
	cache, err := lru.New[string, domain.ResolvedCommit](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating resolution cache: %w", err)
	}
	return &Adapter{api: api, gh: gh, retryCfg: retryCfg, cache: cache}, nil
}

// ResolveTag resolves the release tag for version in the owner/name repo,
// trying the v-prefixed tag before the bare one and dereferencing annotated
// tags down to their commit.
func (a *Adapter) ResolveTag(ctx context.Context, repo, version string) (domain.ResolvedCommit, error) {
	key := "tag:" + repo + "@" + version
	if hit, ok := a.cache.Get(key); ok {
		return hit, nil
	}
	owner, name, err := domain.SplitRepo(repo)
	if err != nil {
		return domain.ResolvedCommit{}, err
	}

	var resolved domain.ResolvedCommit
	err = retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		sha, err := a.tagCommit(ctx, owner, name, version)
		if err != nil {
			return err
		}
		resolved = domain.ResolvedCommit{SHA: sha, URL: a.gh.CommitURL(repo, sha)}
		return nil
	})
	if err != nil {
		return domain.ResolvedCommit{}, err
	}
	a.cache.Add(key, resolved)
	return resolved, nil
}

// ResolveCommit expands a short commit hash to its full SHA.
func (a *Adapter) ResolveCommit(ctx context.Context, repo, shortSHA string) (domain.ResolvedCommit, error) {
	key := "commit:" + repo + "@" + shortSHA
	if hit, ok := a.cache.Get(key); ok {
		return hit, nil
	}
	owner, name, err := domain.SplitRepo(repo)
	if err != nil {
		return domain.ResolvedCommit{}, err
	}

	var resolved domain.ResolvedCommit
	err = retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		commit, resp, err := a.api.Repositories.GetCommit(ctx, owner, name, shortSHA, nil)
		if err != nil {
			if notFound(resp) {
				return retry.Permanent(fmt.Errorf("%w: %s in %s", domain.ErrCommitNotFound, shortSHA, repo))
			}
			return fmt.Errorf("looking up commit %s: %w", shortSHA, err)
		}
		url := commit.GetHTMLURL()
		if url == "" {
			url = a.gh.CommitURL(repo, commit.GetSHA())
		}
		resolved = domain.ResolvedCommit{SHA: commit.GetSHA(), URL: url}
		return nil
	})
	if err != nil {
		return domain.ResolvedCommit{}, err
	}
	a.cache.Add(key, resolved)
	return resolved, nil
}

func (a *Adapter) tagCommit(ctx context.Context, owner, name, version string) (string, error) {
	for _, tag := range tagCandidates(version) {
		ref, resp, err := a.api.Git.GetRef(ctx, owner, name, "tags/"+tag)
		if err != nil {
			if notFound(resp) {
				continue
			}
			return "", fmt.Errorf("looking up tag %s: %w", tag, err)
		}
		return a.deref(ctx, owner, name, ref.Object)
	}
	return "", retry.Permanent(fmt.Errorf("%w: %s/%s has no release tag for %s",
		domain.ErrReleaseNotFound, owner, name, version))
}

// deref follows annotated tag objects until a commit is reached.
func (a *Adapter) deref(ctx context.Context, owner, name string, obj *gogithub.GitObject) (string, error) {
	for depth := 0; depth < maxTagDepth; depth++ {
		switch obj.GetType() {
		case "commit":
			return obj.GetSHA(), nil
		case "tag":
			tag, _, err := a.api.Git.GetTag(ctx, owner, name, obj.GetSHA())
			if err != nil {
				return "", fmt.Errorf("dereferencing annotated tag %s: %w", obj.GetSHA(), err)
			}
			obj = tag.Object
		default:
			return "", retry.Permanent(fmt.Errorf("tag points at unexpected object type %q", obj.GetType()))
		}
	}
	return "", retry.Permanent(fmt.Errorf("tag dereference exceeded depth %d", maxTagDepth))
}

func tagCandidates(version string) []string {
	if strings.HasPrefix(version, "v") {
		return []string{version, strings.TrimPrefix(version, "v")}
	}
	return []string{"v" + version, version}
}

func notFound(resp *gogithub.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
