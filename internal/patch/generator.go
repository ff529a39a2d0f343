package patch

import (
	"context"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// Generator produces per-intent patches from a parsed branch diff.
type Generator struct {
	git *gitops.Git
}

// NewGenerator returns a Generator using git for ref access.
func NewGenerator(git *gitops.Git) *Generator {
	return &Generator{git: git}
}

// FullDiff fetches and parses the complete diff between two refs.
func (p *Generator) FullDiff(ctx context.Context, base, source string) ([]diff.FileDiff, error) {
	raw, err := p.git.RawDiff(ctx, base, source)
	if err != nil {
		return nil, err
	}
	return diff.Parse(raw), nil
}

// ForLines builds a patch containing only the changes of fd that fall
// inside ranges. It returns "" when no hunk intersects the ranges —
// the caller must treat that as "no changes for this file", not as a
// failure. Binary files cannot be split by line and yield "". New files
// always get their full content: a partial new file has no old side to
// anchor against.
func (p *Generator) ForLines(fd *diff.FileDiff, ranges []diff.LineRange) string {
	if fd.IsBinary {
		return ""
	}
	if fd.IsNew {
		return p.FullFile(fd)
	}

	lines := []string{
		"--- a/" + fd.OldPath,
		"+++ b/" + fd.NewPath,
	}

	hunks := 0
	for i := range fd.Hunks {
		filtered := FilterHunk(&fd.Hunks[i], ranges)
		if len(filtered) == 0 {
			continue
		}
		if body := SynthesizeHunk(&fd.Hunks[i], filtered); body != nil {
			lines = append(lines, body...)
			hunks++
		}
	}
	if hunks == 0 {
		logging.PatchDebug("No hunks in range for %s", fd.Path())
		return ""
	}

	logging.Patch("Synthesized patch for %s: %d hunks", fd.Path(), hunks)
	return strings.Join(lines, "\n") + "\n"
}

// FullFile builds a patch carrying every hunk of fd unmodified. Used
// for new files and whole-file intent claims.
func (p *Generator) FullFile(fd *diff.FileDiff) string {
	oldMarker := "--- a/" + fd.OldPath
	if fd.IsNew {
		oldMarker = "--- /dev/null"
	}
	lines := []string{
		oldMarker,
		"+++ b/" + fd.NewPath,
	}

	for _, h := range fd.Hunks {
		lines = append(lines, h.Header)
		for _, l := range h.Lines {
			switch {
			case l.IsAddition():
				lines = append(lines, "+"+l.Content)
			case l.IsDeletion():
				lines = append(lines, "-"+l.Content)
			default:
				lines = append(lines, " "+l.Content)
			}
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
