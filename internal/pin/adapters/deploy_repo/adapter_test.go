package deployrepo

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/nathantilsley/chart-pin/internal/platform/gitcmd"
)

// setupRepos creates a bare origin with one commit on main and a working
// clone of it.
func setupRepos(t *testing.T) (origin, clone string) {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "seed")
	origin = filepath.Join(t.TempDir(), "origin.git")
	clone = filepath.Join(t.TempDir(), "clone")

	runGit(t, "", "init", "-b", "main", seed)
	runGit(t, seed, "config", "user.email", "test@example.com")
	runGit(t, seed, "config", "user.name", "Test")
	writeFile(t, filepath.Join(seed, "build.json"), "{\n  \"helmCharts\": {}\n}\n")
	runGit(t, seed, "add", ".")
	runGit(t, seed, "commit", "-m", "init")

	runGit(t, "", "clone", "--bare", seed, origin)
	runGit(t, "", "clone", origin, clone)
	return origin, clone
}

func newAdapter(t *testing.T, clone string) *Adapter {
	t.Helper()
	runner, err := gitcmd.New(clone, "Pin Bot", "pin-bot@example.com")
	if err != nil {
		t.Fatalf("gitcmd.New: %v", err)
	}
	return New(runner, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestEnsureBranch_CreatesFromBase(t *testing.T) {
	t.Parallel()
	_, clone := setupRepos(t)
	a := newAdapter(t, clone)
	ctx := context.Background()

	if err := a.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	existed, err := a.EnsureBranch(ctx, "pin/5.23.0-main", "main")
	if err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
	if existed {
		t.Error("EnsureBranch() existed = true for unknown branch")
	}

	if got := gitOut(t, clone, "rev-parse", "--abbrev-ref", "HEAD"); got != "pin/5.23.0-main" {
		t.Errorf("current branch = %q, want pin/5.23.0-main", got)
	}
	head := gitOut(t, clone, "rev-parse", "HEAD")
	base := gitOut(t, clone, "rev-parse", "refs/remotes/origin/main")
	if head != base {
		t.Errorf("fresh branch HEAD = %s, want base %s", head, base)
	}
}

func TestEnsureBranch_ReusesAndRebases(t *testing.T) {
	t.Parallel()
	_, clone := setupRepos(t)
	a := newAdapter(t, clone)
	ctx := context.Background()

	// An earlier run left pin/coturn-v4.19.0 on the remote.
	runGit(t, clone, "checkout", "-b", "pin/coturn-v4.19.0")
	writeFile(t, filepath.Join(clone, "pin.txt"), "pinned\n")
	runGit(t, clone, "add", ".")
	runGit(t, clone, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "earlier pin")
	runGit(t, clone, "push", "origin", "pin/coturn-v4.19.0")

	// Meanwhile main moved forward.
	runGit(t, clone, "checkout", "main")
	writeFile(t, filepath.Join(clone, "base.txt"), "newer base\n")
	runGit(t, clone, "add", ".")
	runGit(t, clone, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "advance main")
	runGit(t, clone, "push", "origin", "main")

	if err := a.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	existed, err := a.EnsureBranch(ctx, "pin/coturn-v4.19.0", "main")
	if err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
	if !existed {
		t.Error("EnsureBranch() existed = false for remote branch")
	}

	// The rebase keeps the pin commit on top of the advanced base.
	for _, f := range []string{"pin.txt", "base.txt"} {
		if _, err := os.Stat(filepath.Join(clone, f)); err != nil {
			t.Errorf("expected %s in rebased worktree: %v", f, err)
		}
	}
	parent := gitOut(t, clone, "rev-parse", "HEAD~1")
	base := gitOut(t, clone, "rev-parse", "refs/remotes/origin/main")
	if parent != base {
		t.Errorf("rebased commit parent = %s, want origin/main %s", parent, base)
	}
}

func TestEnsureBranch_RecreatesOnRebaseConflict(t *testing.T) {
	t.Parallel()
	_, clone := setupRepos(t)
	a := newAdapter(t, clone)
	ctx := context.Background()

	// Branch and base both rewrite the same build.json line.
	runGit(t, clone, "checkout", "-b", "pin/5.22.0-main")
	writeFile(t, filepath.Join(clone, "build.json"), "{\n  \"helmCharts\": {\"old\": {}}\n}\n")
	runGit(t, clone, "add", ".")
	runGit(t, clone, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "old pin")
	runGit(t, clone, "push", "origin", "pin/5.22.0-main")

	runGit(t, clone, "checkout", "main")
	mainContent := "{\n  \"helmCharts\": {\"new\": {}}\n}\n"
	writeFile(t, filepath.Join(clone, "build.json"), mainContent)
	runGit(t, clone, "add", ".")
	runGit(t, clone, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "conflicting base change")
	runGit(t, clone, "push", "origin", "main")

	if err := a.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	existed, err := a.EnsureBranch(ctx, "pin/5.22.0-main", "main")
	if err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
	if !existed {
		t.Error("EnsureBranch() existed = false for remote branch")
	}

	head := gitOut(t, clone, "rev-parse", "HEAD")
	base := gitOut(t, clone, "rev-parse", "refs/remotes/origin/main")
	if head != base {
		t.Errorf("recreated branch HEAD = %s, want origin/main %s", head, base)
	}
	data, err := os.ReadFile(filepath.Join(clone, "build.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != mainContent {
		t.Errorf("build.json after recreate = %q, want base content", data)
	}
}

func TestCommit(t *testing.T) {
	t.Parallel()
	_, clone := setupRepos(t)
	a := newAdapter(t, clone)
	ctx := context.Background()

	// Nothing staged yet.
	sha, err := a.Commit(ctx, "noop", "build.json")
	if err != nil {
		t.Fatalf("Commit (clean tree): %v", err)
	}
	if sha != "" {
		t.Errorf("Commit() on clean tree = %q, want empty SHA", sha)
	}

	writeFile(t, filepath.Join(clone, "build.json"), "{\n  \"helmCharts\": {\"wire-server\": {}}\n}\n")
	sha, err = a.Commit(ctx, "Pin charts to 5.23.0", "build.json")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{40}$`).MatchString(sha) {
		t.Errorf("Commit() SHA = %q, want full hex SHA", sha)
	}
	if got := gitOut(t, clone, "log", "-1", "--format=%s"); got != "Pin charts to 5.23.0" {
		t.Errorf("commit subject = %q", got)
	}
	if got := gitOut(t, clone, "log", "-1", "--format=%an"); got != "Pin Bot" {
		t.Errorf("commit author = %q, want Pin Bot", got)
	}
}

func TestPush_ForceReplacesRemoteBranch(t *testing.T) {
	t.Parallel()
	origin, clone := setupRepos(t)
	a := newAdapter(t, clone)
	ctx := context.Background()

	// Remote branch with a commit the local branch will not contain.
	runGit(t, clone, "checkout", "-b", "pin/replaced")
	writeFile(t, filepath.Join(clone, "stale.txt"), "stale\n")
	runGit(t, clone, "add", ".")
	runGit(t, clone, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "stale pin")
	runGit(t, clone, "push", "origin", "pin/replaced")

	// Recreate the branch from main with different content.
	runGit(t, clone, "checkout", "-B", "pin/replaced", "main")
	writeFile(t, filepath.Join(clone, "fresh.txt"), "fresh\n")
	sha, err := a.Commit(ctx, "fresh pin", "fresh.txt")
	if err != nil || sha == "" {
		t.Fatalf("Commit: sha=%q err=%v", sha, err)
	}

	if err := a.Push(ctx, "pin/replaced"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got := gitOut(t, origin, "rev-parse", "refs/heads/pin/replaced"); got != sha {
		t.Errorf("remote branch = %s, want force-pushed %s", got, sha)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\noutput: %s", args, err, output)
	}
}

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\noutput: %s", args, err, output)
	}
	return strings.TrimSpace(string(output))
}
