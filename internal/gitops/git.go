// Package gitops wraps the git command line for the split engine.
// Every call shells out via exec.CommandContext so cancellation and
// timeouts propagate; the engine guarantees only one mutator per
// repository, so no locking happens here.
package gitops

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// Git runs git commands in a single repository.
type Git struct {
	repoPath string
}

// New returns a Git bound to repoPath, verifying it is a work tree.
func New(ctx context.Context, repoPath string) (*Git, error) {
	g := &Git{repoPath: repoPath}
	if _, err := g.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, fmt.Errorf("not a git repository: %s", repoPath)
	}
	return g, nil
}

// RepoPath returns the repository root this instance operates on.
func (g *Git) RepoPath() string { return g.repoPath }

// run executes git with args, returning trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return g.runInput(ctx, "", args...)
}

// runInput executes git with args, feeding input on stdin when non-empty.
func (g *Git) runInput(ctx context.Context, input string, args ...string) (string, error) {
	logging.GitDebug("git %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// CurrentBranch returns the checked-out branch name, or the short commit
// hash when HEAD is detached.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	name, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if name == "HEAD" {
		return g.run(ctx, "rev-parse", "--short=8", "HEAD")
	}
	return name, nil
}

// DefaultBranch returns main or master, whichever exists, preferring main.
func (g *Git) DefaultBranch(ctx context.Context) string {
	for _, name := range []string{"main", "master"} {
		if g.BranchExists(ctx, name) {
			return name
		}
	}
	// Fall back to the remote HEAD if configured.
	if out, err := g.run(ctx, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		parts := strings.Split(out, "/")
		return parts[len(parts)-1]
	}
	return "main"
}

// MergeBase returns the common ancestor of two refs.
func (g *Git) MergeBase(ctx context.Context, a, b string) (string, error) {
	return g.run(ctx, "merge-base", a, b)
}

// RawDiff returns `git diff base..head` output, diffing from the merge
// base so unrelated drift on the base branch is excluded.
func (g *Git) RawDiff(ctx context.Context, base, head string) (string, error) {
	mergeBase, err := g.MergeBase(ctx, base, head)
	if err != nil {
		return "", err
	}
	out, err := g.runInput(ctx, "", "diff", mergeBase, head)
	if err != nil {
		return "", err
	}
	return out, nil
}

// DiffRefs returns the direct diff between two refs with no merge-base
// resolution. The verifier uses it to inspect a hash mismatch.
func (g *Git) DiffRefs(ctx context.Context, a, b string) (string, error) {
	return g.run(ctx, "diff", a, b)
}

// ContentHash returns a 16-hex-character digest over the ref's full
// recursive tree listing (mode, type, blob hash, path per file). Commit
// messages, timestamps, authorship and branch names never enter the
// hash, so two refs hash identically iff their tracked contents match.
func (g *Git) ContentHash(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "ls-tree", "-r", ref)
	if err != nil {
		return "", fmt.Errorf("failed to list tree for %s: %w", ref, err)
	}
	sum := sha256.Sum256([]byte(out + "\n"))
	return hex.EncodeToString(sum[:])[:16], nil
}

// CreateBranch creates a branch at fromRef without checking it out.
func (g *Git) CreateBranch(ctx context.Context, name, fromRef string) error {
	_, err := g.run(ctx, "branch", name, fromRef)
	return err
}

// Checkout switches the work tree to a branch.
func (g *Git) Checkout(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", name)
	return err
}

// DeleteBranch removes a branch; force discards unmerged commits.
func (g *Git) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, "branch", flag, name)
	return err
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(ctx context.Context, name string) bool {
	_, err := g.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// ApplyCheck dry-runs a patch against the work tree. threeWay allows
// fallback to a three-way merge during the check.
func (g *Git) ApplyCheck(ctx context.Context, patch string, threeWay bool) error {
	args := []string{"apply", "--check"}
	if threeWay {
		args = append(args, "-3")
	}
	_, err := g.runInput(ctx, patch, args...)
	return err
}

// Apply applies a patch to the work tree.
func (g *Git) Apply(ctx context.Context, patch string) error {
	_, err := g.runInput(ctx, patch, "apply")
	return err
}

// StageAll stages every change in the work tree.
func (g *Git) StageAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// Commit records staged changes and returns the new commit hash.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return g.run(ctx, "rev-parse", "HEAD")
}

// ShowFile returns a file's exact content at a ref, trailing newline
// included. The second return value is false when the file does not
// exist at that ref.
func (g *Git) ShowFile(ctx context.Context, ref, path string) (string, bool) {
	cmd := exec.CommandContext(ctx, "git", "show", ref+":"+path)
	cmd.Dir = g.repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

// CheckoutFile restores a single path from a ref into the work tree.
func (g *Git) CheckoutFile(ctx context.Context, ref, path string) error {
	_, err := g.run(ctx, "checkout", ref, "--", path)
	return err
}

// Push pushes a branch to origin, setting the upstream.
func (g *Git) Push(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "push", "-u", "origin", branch)
	return err
}

// HasRemote reports whether any remote is configured.
func (g *Git) HasRemote(ctx context.Context) bool {
	out, err := g.run(ctx, "remote")
	return err == nil && strings.TrimSpace(out) != ""
}

// ResetHard discards all work tree state back to a ref.
func (g *Git) ResetHard(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "reset", "--hard", ref)
	return err
}

// ListFiles returns every tracked path at a ref.
func (g *Git) ListFiles(ctx context.Context, ref string) ([]string, error) {
	out, err := g.run(ctx, "ls-tree", "-r", "--name-only", ref)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
