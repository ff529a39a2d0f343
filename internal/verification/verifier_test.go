package verification

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AgenticCurve/gitsplit/internal/gitops"
)

// newSplitRepo builds a repository with two branches: "feature" carries
// the original change, "split" carries a divergent rendition of it.
// Tests skip when git is not installed.
func newSplitRepo(t *testing.T) (*gitops.Git, context.Context) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	ctx := context.Background()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	write("main.go", "package main\n\nfunc main() {}\n")
	run("add", "-A")
	run("commit", "-m", "initial")

	run("checkout", "-b", "feature")
	write("main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	run("add", "-A")
	run("commit", "-m", "greet")

	run("checkout", "-b", "split", "main")
	write("main.go", "package main\n\nfunc main() {\n\tprintln(\"bye\")\n}\n")
	run("add", "-A")
	run("commit", "-m", "greet differently")
	run("checkout", "main")

	g, err := gitops.New(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	return g, ctx
}

func TestVerifySplitMatchingContent(t *testing.T) {
	g, ctx := newSplitRepo(t)
	v := NewVerifier(g)

	// A branch compared against itself always matches.
	result, err := v.VerifySplit(ctx, "feature", "feature")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed {
		t.Errorf("expected pass, got %s", result.Diagnosis())
	}
	if result.OriginalHash != result.FinalHash {
		t.Errorf("hashes differ on identical refs: %s vs %s", result.OriginalHash, result.FinalHash)
	}
}

func TestVerifySplitIgnoresCommitMetadata(t *testing.T) {
	g, ctx := newSplitRepo(t)
	v := NewVerifier(g)

	hash, err := v.ContentHash(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 16 {
		t.Errorf("content hash = %q, want 16 hex characters", hash)
	}
}

func TestVerifySplitMismatch(t *testing.T) {
	g, ctx := newSplitRepo(t)
	v := NewVerifier(g)

	result, err := v.VerifySplit(ctx, "feature", "split")
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed {
		t.Fatal("expected a hash mismatch between feature and split")
	}
	if result.OriginalHash == result.FinalHash {
		t.Error("mismatched refs reported identical hashes")
	}

	if len(result.Differences) == 0 {
		t.Fatal("expected per-file differences for the mismatch")
	}
	d := result.Differences[0]
	if d.File != "main.go" {
		t.Errorf("difference file = %q, want main.go", d.File)
	}
	var added, removed bool
	for _, c := range d.Changes {
		switch c.Type {
		case "added":
			added = true
			if !strings.Contains(c.Content, "bye") {
				t.Errorf("added line = %q, want the split tip's content", c.Content)
			}
		case "removed":
			removed = true
			if !strings.Contains(c.Content, "hi") {
				t.Errorf("removed line = %q, want the original's content", c.Content)
			}
		}
	}
	if !added || !removed {
		t.Errorf("expected both added and removed changes, got %+v", d.Changes)
	}

	diag := result.Diagnosis()
	if !strings.Contains(diag, "main.go") {
		t.Errorf("diagnosis %q does not name the differing file", diag)
	}
}
