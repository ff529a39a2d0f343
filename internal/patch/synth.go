package patch

import (
	"fmt"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// SynthesizeHunk turns a filtered line subset back into a valid hunk:
// the `@@` header plus prefixed body lines. It returns nil for an empty
// input. Counts are recounted from the body — a count copied from the
// source hunk would be wrong for any proper subset and git would reject
// or, worse, misplace the patch.
func SynthesizeHunk(original *diff.Hunk, filtered []diff.DiffLine) []string {
	if len(filtered) == 0 {
		return nil
	}

	oldCount, newCount := 0, 0
	for _, l := range filtered {
		if l.IsContext() || l.IsDeletion() {
			oldCount++
		}
		if l.IsContext() || l.IsAddition() {
			newCount++
		}
	}

	oldStart, newStart := recoverStarts(original, filtered)

	result := make([]string, 0, len(filtered)+1)
	result = append(result, fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount))

	for _, l := range filtered {
		switch {
		case l.IsAddition():
			result = append(result, "+"+l.Content)
		case l.IsDeletion():
			result = append(result, "-"+l.Content)
		default:
			result = append(result, " "+l.Content)
		}
	}
	return result
}

// recoverStarts finds correlated old/new start positions for a filtered
// fragment, in priority order:
//
//  1. a context line, which carries both positions;
//  2. the first known position on one side, with the other side derived
//     through the source hunk's constant offset newStart-oldStart (the
//     cumulative line-count skew outside a single hunk is fixed, so the
//     offset holds for every line of the fragment);
//  3. the source hunk's own starts, when no line carries a position.
func recoverStarts(original *diff.Hunk, filtered []diff.DiffLine) (int, int) {
	for _, l := range filtered {
		if l.IsContext() && l.OldLine > 0 && l.NewLine > 0 {
			return l.OldLine, l.NewLine
		}
	}

	firstOld, firstNew := 0, 0
	for _, l := range filtered {
		if firstOld == 0 && l.OldLine > 0 {
			firstOld = l.OldLine
		}
		if firstNew == 0 && l.NewLine > 0 {
			firstNew = l.NewLine
		}
	}

	offset := original.NewStart - original.OldStart
	switch {
	case firstOld > 0 && firstNew == 0:
		return firstOld, firstOld + offset
	case firstNew > 0 && firstOld == 0:
		return firstNew - offset, firstNew
	case firstOld > 0 && firstNew > 0:
		return firstOld, firstNew
	default:
		return original.OldStart, original.NewStart
	}
}
