package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

var (
	fileHeaderRe = regexp.MustCompile(`^diff --git a/(.*) b/(.*)$`)
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// Parse turns raw `git diff` output into structured FileDiffs.
//
// Malformed hunk headers are dropped rather than fabricated: a hunk we
// cannot position correctly would corrupt synthesis silently, so it is
// safer to skip it and let verification catch the gap. Binary files
// produce a FileDiff with no hunks.
func Parse(diffText string) []FileDiff {
	var files []FileDiff
	var current *FileDiff
	var hunk *Hunk

	flushHunk := func() {
		if hunk != nil && current != nil {
			current.Hunks = append(current.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(diffText, "\n") {
		if m := fileHeaderRe.FindStringSubmatch(line); m != nil {
			flushFile()
			current = &FileDiff{OldPath: m[1], NewPath: m[2]}
			continue
		}

		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "new file"):
			current.IsNew = true
		case strings.HasPrefix(line, "deleted file"):
			current.IsDelete = true
		case strings.HasPrefix(line, "Binary"):
			current.IsBinary = true
		}

		if strings.HasPrefix(line, "@@") {
			flushHunk()
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				logging.DiffDebug("Dropping unparseable hunk header in %s: %q", current.Path(), line)
				continue
			}
			hunk = &Hunk{
				OldStart: atoi(m[1]),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoi(m[3]),
				NewCount: atoiDefault(m[4], 1),
				Header:   line,
			}
			continue
		}

		if hunk == nil || line == "" {
			continue
		}

		// The `\ No newline at end of file` marker matches no case and
		// is dropped, so patches rebuilt from these hunks always end the
		// file with a newline. When that diverges from the source branch
		// the content-hash verification reports it rather than letting
		// the split silently drift.
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			hunk.Lines = append(hunk.Lines, DiffLine{Content: line[1:], Kind: LineAddition})
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			hunk.Lines = append(hunk.Lines, DiffLine{Content: line[1:], Kind: LineDeletion})
		case strings.HasPrefix(line, " "):
			hunk.Lines = append(hunk.Lines, DiffLine{Content: line[1:], Kind: LineContext})
		}
	}
	flushFile()

	for i := range files {
		for j := range files[i].Hunks {
			assignLineNumbers(&files[i].Hunks[j])
		}
	}

	logging.Diff("Parsed diff: %d files", len(files))
	return files
}

// assignLineNumbers walks a hunk once, giving every line its old/new
// position. Context lines advance both counters, deletions only the old
// one, additions only the new one.
func assignLineNumbers(h *Hunk) {
	oldNum := h.OldStart
	newNum := h.NewStart

	for i := range h.Lines {
		switch h.Lines[i].Kind {
		case LineContext:
			h.Lines[i].OldLine = oldNum
			h.Lines[i].NewLine = newNum
			oldNum++
			newNum++
		case LineDeletion:
			h.Lines[i].OldLine = oldNum
			oldNum++
		case LineAddition:
			h.Lines[i].NewLine = newNum
			newNum++
		}
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	return atoi(s)
}
