// Package orphantag publishes a manifest as a history-free tagged commit.
package orphantag

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	ghclient "github.com/nathantilsley/chart-pin/internal/platform/github"
	"github.com/nathantilsley/chart-pin/internal/platform/retry"
)

// Adapter implements ports.TagPort by writing blob, tree and commit objects
// straight into the object database. The published commit has no parents, so
// the tag carries the manifest and none of the repository's history. No
// branch is involved and the working tree is never touched.
type Adapter struct {
	repo        *git.Repository
	token       ghclient.TokenFunc
	authorName  string
	authorEmail string
	retryCfg    retry.Config
}

// New opens the checkout at path. token may yield the empty string for
// remotes that need no authentication.
func New(path string, token ghclient.TokenFunc, authorName, authorEmail string, retryCfg retry.Config) (*Adapter, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Adapter{
		repo:        repo,
		token:       token,
		authorName:  authorName,
		authorEmail: authorEmail,
		retryCfg:    retryCfg,
	}, nil
}

// PublishManifest writes content as the only file of a parentless commit and
// points tag at it, replacing any previous tag of that name locally and, via
// a forced refspec, on the remote.
func (a *Adapter) PublishManifest(ctx context.Context, tag, file string, content []byte, message string) (string, error) {
	commitHash, err := a.writeOrphanCommit(file, content, message)
	if err != nil {
		return "", err
	}

	if err := a.repo.DeleteTag(tag); err != nil && !errors.Is(err, git.ErrTagNotFound) {
		return "", fmt.Errorf("deleting local tag %s: %w", tag, err)
	}
	if _, err := a.repo.CreateTag(tag, commitHash, nil); err != nil {
		return "", fmt.Errorf("creating tag %s: %w", tag, err)
	}

	if err := a.push(ctx, tag); err != nil {
		return "", err
	}
	return commitHash.String(), nil
}

func (a *Adapter) writeOrphanCommit(file string, content []byte, message string) (plumbing.Hash, error) {
	blobHash, err := a.writeBlob(content)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tree := &object.Tree{Entries: []object.TreeEntry{{
		Name: file,
		Mode: filemode.Regular,
		Hash: blobHash,
	}}}
	treeObj := a.repo.Storer.NewEncodedObject()
	if err := tree.Encode(treeObj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding tree: %w", err)
	}
	treeHash, err := a.repo.Storer.SetEncodedObject(treeObj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing tree: %w", err)
	}

	sig := object.Signature{Name: a.authorName, Email: a.authorEmail, When: time.Now()}
	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  treeHash,
	}
	commitObj := a.repo.Storer.NewEncodedObject()
	if err := commit.Encode(commitObj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding commit: %w", err)
	}
	commitHash, err := a.repo.Storer.SetEncodedObject(commitObj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing commit: %w", err)
	}
	return commitHash, nil
}

func (a *Adapter) writeBlob(content []byte) (plumbing.Hash, error) {
	obj := a.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("opening blob writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("writing blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("closing blob: %w", err)
	}
	return a.repo.Storer.SetEncodedObject(obj)
}

func (a *Adapter) push(ctx context.Context, tag string) error {
	refspec := gitcfg.RefSpec("+refs/tags/" + tag + ":refs/tags/" + tag)
	return retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		auth, err := a.auth(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		err = a.repo.PushContext(ctx, &git.PushOptions{
			RemoteName: "origin",
			RefSpecs:   []gitcfg.RefSpec{refspec},
			Auth:       auth,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pushing tag %s: %w", tag, err)
		}
		return nil
	})
}

func (a *Adapter) auth(ctx context.Context) (transport.AuthMethod, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting push credential: %w", err)
	}
	if token == "" {
		return nil, nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}, nil
}
