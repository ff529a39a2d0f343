package patch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
)

// overlayRepo builds a repository where main holds the original file
// and branch "source" holds the edited version to overlay from.
func overlayRepo(t *testing.T, original, edited string) (*Applier, *gitops.Git, context.Context) {
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

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	write(original)
	run("add", "-A")
	run("commit", "-m", "original")
	run("checkout", "-b", "source")
	write(edited)
	run("add", "-A")
	run("commit", "--allow-empty", "-m", "edited")
	run("checkout", "main")

	git, err := gitops.New(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	return NewApplier(git), git, ctx
}

func TestOverlayLines(t *testing.T) {
	original := "one\ntwo\nthree\nfour\n"
	edited := "one\nTWO EDITED\nTHREE EDITED\nfour\n"
	applier, git, ctx := overlayRepo(t, original, edited)

	err := applier.OverlayLines(ctx, "file.txt", "source", []diff.LineRange{{Start: 2, End: 3}})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(git.RepoPath(), "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "one\nTWO EDITED\nTHREE EDITED\nfour\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestOverlayLinesPartial(t *testing.T) {
	original := "one\ntwo\nthree\nfour\n"
	edited := "one\nTWO EDITED\nTHREE EDITED\nfour\n"
	applier, git, ctx := overlayRepo(t, original, edited)

	// Only line 2 is requested; line 3 keeps its working-tree content.
	if err := applier.OverlayLines(ctx, "file.txt", "source", []diff.LineRange{{Start: 2, End: 2}}); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(git.RepoPath(), "file.txt"))
	want := "one\nTWO EDITED\nthree\nfour\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestOverlayLinesExtends(t *testing.T) {
	original := "one\n"
	edited := "one\ntwo\nthree\n"
	applier, git, ctx := overlayRepo(t, original, edited)

	if err := applier.OverlayLines(ctx, "file.txt", "source", []diff.LineRange{{Start: 2, End: 3}}); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(git.RepoPath(), "file.txt"))
	// The overlay extends the file but adds no newline past the last
	// requested line.
	want := "one\ntwo\nthree"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestOverlayLinesMissingSource(t *testing.T) {
	applier, _, ctx := overlayRepo(t, "one\n", "one\n")

	err := applier.OverlayLines(ctx, "missing.txt", "source", []diff.LineRange{{Start: 1, End: 1}})
	if err == nil {
		t.Error("missing source file must be a hard error")
	}
}

func TestApplyEmptyPatch(t *testing.T) {
	applier, _, ctx := overlayRepo(t, "one\n", "one\n")
	if err := applier.Apply(ctx, "  \n"); err != nil {
		t.Errorf("empty patch should be a no-op, got %v", err)
	}
}
