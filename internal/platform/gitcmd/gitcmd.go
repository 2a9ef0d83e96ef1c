// Package gitcmd runs git as a subprocess for working-tree operations that
// have no library equivalent (checkout, rebase, push).
package gitcmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes git commands inside one checkout with a fixed committer
// identity.
type Runner struct {
	dir         string
	authorName  string
	authorEmail string
}

// New verifies the git binary is installed and dir is a repository checkout.
// Both are preconditions; either missing aborts before any mutation.
func New(dir, authorName, authorEmail string) (*Runner, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git binary not found in PATH: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil, fmt.Errorf("%s is not a git checkout: %w", dir, err)
	}
	return &Runner{dir: dir, authorName: authorName, authorEmail: authorEmail}, nil
}

// Dir returns the checkout the runner operates in.
func (r *Runner) Dir() string {
	return r.dir
}

// Run executes one git command and returns its combined output, trimmed.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	output, err := r.command(ctx, args...).CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(output)), fmt.Errorf("git %s failed: %w\noutput: %s",
			args[0], err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// Succeeds runs a command whose non-zero exit is an answer rather than a
// failure (rev-parse --verify, diff --quiet). It reports success plus the
// trimmed combined output.
func (r *Runner) Succeeds(ctx context.Context, args ...string) (bool, string) {
	output, err := r.command(ctx, args...).CombinedOutput()
	return err == nil, strings.TrimSpace(string(output))
}

func (r *Runner) command(ctx context.Context, args ...string) *exec.Cmd {
	full := append([]string{
		"-C", r.dir,
		"-c", "user.name=" + r.authorName,
		"-c", "user.email=" + r.authorEmail,
	}, args...)
	return exec.CommandContext(ctx, "git", full...)
}
