package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// ErrPatchRejected means every apply fallback failed for an intent's
// patch. It is fatal for the whole execution: silently skipping a
// requested range would break the coverage the verifier depends on.
var ErrPatchRejected = errors.New("patch rejected by all apply strategies")

// Applier applies synthesized patches to the working tree with a staged
// fallback chain: plain dry-run check, three-way dry-run check, and
// finally a direct line overlay from the source ref.
type Applier struct {
	git *gitops.Git
}

// NewApplier returns an Applier bound to git's repository.
func NewApplier(git *gitops.Git) *Applier {
	return &Applier{git: git}
}

// Apply applies a patch to the working tree. A patch that fails both the
// plain and the three-way dry-run check returns an error; callers fall
// back to OverlayLines before giving up.
func (a *Applier) Apply(ctx context.Context, patch string) error {
	if strings.TrimSpace(patch) == "" {
		return nil
	}

	if err := a.git.ApplyCheck(ctx, patch, false); err != nil {
		logging.PatchDebug("Plain apply check failed, retrying three-way: %v", err)
		if err := a.git.ApplyCheck(ctx, patch, true); err != nil {
			return fmt.Errorf("patch does not apply: %w", err)
		}
	}
	return a.git.Apply(ctx, patch)
}

// OverlayLines is the last-resort fallback: for every 1-indexed line
// number covered by ranges, the working-tree line is overwritten with
// the source ref's line at the same index, extending the working file
// when the source is longer. An I/O failure here is a hard error —
// degrading to a no-op would silently drop a requested range.
func (a *Applier) OverlayLines(ctx context.Context, path, sourceRef string, ranges []diff.LineRange) error {
	sourceContent, ok := a.git.ShowFile(ctx, sourceRef, path)
	if !ok {
		return fmt.Errorf("cannot read %s at %s", path, sourceRef)
	}
	sourceLines := strings.Split(sourceContent, "\n")

	workPath := filepath.Join(a.git.RepoPath(), path)
	var workLines []string
	if data, err := os.ReadFile(workPath); err == nil {
		workLines = strings.Split(string(data), "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cannot read working copy of %s: %w", path, err)
	}

	maxLine := len(workLines)
	for _, r := range ranges {
		if r.End > maxLine {
			maxLine = r.End
		}
	}

	result := make([]string, maxLine)
	copy(result, workLines)

	for _, r := range ranges {
		for num := r.Start; num <= r.End; num++ {
			idx := num - 1
			if idx < len(sourceLines) {
				result[idx] = sourceLines[idx]
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(workPath), 0o755); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(workPath, []byte(strings.Join(result, "\n")), 0o644); err != nil {
		return fmt.Errorf("cannot write overlay for %s: %w", path, err)
	}

	logging.Patch("Applied line overlay for %s: %d ranges", path, len(ranges))
	return nil
}
