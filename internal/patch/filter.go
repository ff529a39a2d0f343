// Package patch slices a parsed branch diff by new-file line ranges and
// re-synthesizes valid unified-diff patches for each slice. This is the
// surgical half of the split engine: a wrong virtual position or a stale
// hunk header here corrupts branches without any error being raised, so
// counts are always recomputed and never copied.
package patch

import (
	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// contextWindow is the number of context lines kept on each side of a
// contiguous in-range run. Three lines is what git needs to anchor a
// hunk reliably.
const contextWindow = 3

// FilterHunk selects the hunk lines whose virtual new-file position
// falls inside any of the requested ranges, plus up to three bordering
// context lines per run. An empty result means the hunk has no changes
// in range; callers must treat that as "nothing to do", not a failure.
//
// Deletions carry no new-file position, so each one is assigned the
// virtual position of the most recently seen positioned line: the
// deletion is treated as sitting immediately before the next surviving
// line at that new-file offset.
func FilterHunk(h *diff.Hunk, ranges []diff.LineRange) []diff.DiffLine {
	if len(h.Lines) == 0 || len(ranges) == 0 {
		return nil
	}

	// First pass: virtual new positions and range membership.
	virtual := make([]int, len(h.Lines))
	lastNew := h.NewStart
	for i, line := range h.Lines {
		if line.NewLine > 0 {
			lastNew = line.NewLine
			virtual[i] = line.NewLine
		} else {
			virtual[i] = lastNew
		}
	}

	inRange := make([]bool, len(h.Lines))
	any := false
	for i := range h.Lines {
		for _, r := range ranges {
			if r.Contains(virtual[i]) {
				inRange[i] = true
				any = true
				break
			}
		}
	}
	if !any {
		return nil
	}

	// Second pass: build the run with asymmetric context padding. Out
	// of-range changed lines are dropped outright; out-of-range context
	// is appended while fewer than contextWindow trailing lines have
	// accumulated since the last in-range line, otherwise buffered as
	// leading context for the next run.
	var result []diff.DiffLine
	var pending []diff.DiffLine
	lastIncludedIdx := -1

	for i, line := range h.Lines {
		switch {
		case inRange[i]:
			start := len(pending) - contextWindow
			if start < 0 {
				start = 0
			}
			result = append(result, pending[start:]...)
			pending = nil
			result = append(result, line)
			lastIncludedIdx = len(result) - 1
		case line.IsContext():
			if len(result) > 0 && len(result)-1-lastIncludedIdx < contextWindow {
				result = append(result, line)
			} else {
				pending = append(pending, line)
			}
		}
	}
	return result
}
