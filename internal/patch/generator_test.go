package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// countAdditions counts a patch's "+" body lines, excluding the +++
// file marker.
func countAdditions(patch string) int {
	n := 0
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			n++
		}
	}
	return n
}

// The central promise: two disjoint ranges carved from one branch diff,
// synthesized independently and applied in sequence on stacked
// branches, reconstruct the edited branch byte for byte.
func TestSplitTwoRangesReconstructsBranch(t *testing.T) {
	// Original: 14 numbered lines. Edited: six lines inserted at new
	// positions 5-10 and six more at 20-25.
	var orig strings.Builder
	for i := 1; i <= 14; i++ {
		fmt.Fprintf(&orig, "line %d\n", i)
	}
	var edited strings.Builder
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&edited, "line %d\n", i)
	}
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&edited, "first addition %d\n", i)
	}
	for i := 5; i <= 13; i++ {
		fmt.Fprintf(&edited, "line %d\n", i)
	}
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&edited, "second addition %d\n", i)
	}
	edited.WriteString("line 14\n")

	applier, git, ctx := overlayRepo(t, orig.String(), edited.String())
	gen := NewGenerator(git)

	fds, err := gen.FullDiff(ctx, "main", "source")
	if err != nil {
		t.Fatal(err)
	}
	if len(fds) != 1 {
		t.Fatalf("parsed %d files, want 1", len(fds))
	}
	fd := &fds[0]

	first := gen.ForLines(fd, []diff.LineRange{{Start: 5, End: 10}})
	second := gen.ForLines(fd, []diff.LineRange{{Start: 20, End: 25}})

	if !strings.Contains(first, "@@ -2,6 +2,12 @@") {
		t.Errorf("first patch header wrong:\n%s", first)
	}
	if !strings.Contains(second, "@@ -11,4 +17,10 @@") {
		t.Errorf("second patch header wrong:\n%s", second)
	}
	if n := countAdditions(first); n != 6 {
		t.Errorf("first patch has %d additions, want 6", n)
	}
	if n := countAdditions(second); n != 6 {
		t.Errorf("second patch has %d additions, want 6", n)
	}

	// Stack the patches the way execution does: each branch starts
	// from the previous one.
	if err := git.CreateBranch(ctx, "split-1", "main"); err != nil {
		t.Fatal(err)
	}
	if err := git.Checkout(ctx, "split-1"); err != nil {
		t.Fatal(err)
	}
	if err := applier.Apply(ctx, first); err != nil {
		t.Fatalf("first patch rejected: %v", err)
	}
	if err := git.StageAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := git.Commit(ctx, "first range"); err != nil {
		t.Fatal(err)
	}

	if err := git.CreateBranch(ctx, "split-2", "split-1"); err != nil {
		t.Fatal(err)
	}
	if err := git.Checkout(ctx, "split-2"); err != nil {
		t.Fatal(err)
	}
	if err := applier.Apply(ctx, second); err != nil {
		t.Fatalf("second patch rejected: %v", err)
	}
	if err := git.StageAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := git.Commit(ctx, "second range"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(git.RepoPath(), "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != edited.String() {
		t.Errorf("reconstructed content differs from the edited branch:\n%s", data)
	}

	wantHash, err := git.ContentHash(ctx, "source")
	if err != nil {
		t.Fatal(err)
	}
	gotHash, err := git.ContentHash(ctx, "split-2")
	if err != nil {
		t.Fatal(err)
	}
	if gotHash != wantHash {
		t.Errorf("content hash = %s, want %s", gotHash, wantHash)
	}
}

func TestForLinesNoHunkInRange(t *testing.T) {
	_, git, ctx := overlayRepo(t, "one\n", "one\nTWO\n")

	gen := NewGenerator(git)
	fds, err := gen.FullDiff(ctx, "main", "source")
	if err != nil {
		t.Fatal(err)
	}
	if got := gen.ForLines(&fds[0], []diff.LineRange{{Start: 90, End: 99}}); got != "" {
		t.Errorf("out-of-range request must yield an empty patch, got:\n%s", got)
	}
}
