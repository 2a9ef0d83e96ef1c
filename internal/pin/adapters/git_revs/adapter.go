// Package gitrevs reads manifest content from arbitrary revisions of the
// deployment repository.
package gitrevs

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Adapter implements ports.RevisionPort with go-git object reads, the
// library equivalent of `git show <rev>:<path>`.
type Adapter struct {
	repo *git.Repository
}

// New opens the checkout at path.
func New(path string) (*Adapter, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Adapter{repo: repo}, nil
}

// FileAt reads path's content as of revision. revision accepts anything
// rev-parse would: a SHA, a branch, a tag.
func (a *Adapter) FileAt(revision, path string) ([]byte, error) {
	hash, err := a.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("resolving revision %q: %w", revision, err)
	}
	commit, err := a.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	file, err := commit.File(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %q: %w", path, revision, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading %s at %q: %w", path, revision, err)
	}
	return []byte(content), nil
}
