package diff

import (
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Engine computes FileDiffs directly from two file contents, without
// shelling out to git. The verifier uses it to pinpoint what differs
// between two refs once their content hashes disagree.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates an engine tuned for line-level code diffs.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // accuracy over speed
	return &Engine{dmp: dmp}
}

// Compute diffs oldContent against newContent and groups the result
// into hunks with up to three lines of surrounding context. Results
// for identical input pairs are cached.
func (e *Engine) Compute(oldPath, newPath, oldContent, newContent string) *FileDiff {
	fd := &FileDiff{OldPath: oldPath, NewPath: newPath}
	if oldContent == "" {
		fd.IsNew = true
	}
	if newContent == "" {
		fd.IsDelete = true
	}

	key := cacheKey{fnv1a(oldContent), fnv1a(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		result := *cached.(*FileDiff)
		result.OldPath = oldPath
		result.NewPath = newPath
		return &result
	}

	// Line-level reduction avoids newline boundary artifacts when
	// converting character diffs back to line operations.
	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	fd.Hunks = groupIntoHunks(toDiffLines(diffs), 3)
	e.cache.Store(key, fd)
	return fd
}

// toDiffLines converts diffmatchpatch output into numbered DiffLines.
func toDiffLines(diffs []diffmatchpatch.Diff) []DiffLine {
	var out []DiffLine
	oldNum, newNum := 1, 1

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				out = append(out, DiffLine{Content: line, Kind: LineContext, OldLine: oldNum, NewLine: newNum})
				oldNum++
				newNum++
			case diffmatchpatch.DiffDelete:
				out = append(out, DiffLine{Content: line, Kind: LineDeletion, OldLine: oldNum})
				oldNum++
			case diffmatchpatch.DiffInsert:
				out = append(out, DiffLine{Content: line, Kind: LineAddition, NewLine: newNum})
				newNum++
			}
		}
	}
	return out
}

// groupIntoHunks splits a full-file line sequence into hunks, keeping
// at most contextLines of context on either side of each change run.
func groupIntoHunks(lines []DiffLine, contextLines int) []Hunk {
	var hunks []Hunk
	var current *Hunk
	lastChangeIdx := -1

	for i, line := range lines {
		isChange := line.Kind != LineContext

		if isChange && current == nil {
			current = &Hunk{}
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			for j := start; j < i; j++ {
				if lines[j].Kind == LineContext {
					current.Lines = append(current.Lines, lines[j])
				}
			}
		}
		if isChange {
			lastChangeIdx = i
		}

		if current != nil {
			current.Lines = append(current.Lines, line)

			if line.Kind == LineContext && i-lastChangeIdx >= contextLines {
				finalizeHunk(current)
				hunks = append(hunks, *current)
				current = nil
			}
		}
	}
	if current != nil && len(current.Lines) > 0 {
		finalizeHunk(current)
		hunks = append(hunks, *current)
	}
	return hunks
}

// finalizeHunk derives start positions and counts from the body lines.
func finalizeHunk(h *Hunk) {
	for _, l := range h.Lines {
		if h.OldStart == 0 && l.OldLine > 0 {
			h.OldStart = l.OldLine
		}
		if h.NewStart == 0 && l.NewLine > 0 {
			h.NewStart = l.NewLine
		}
		if l.Kind == LineContext || l.Kind == LineDeletion {
			h.OldCount++
		}
		if l.Kind == LineContext || l.Kind == LineAddition {
			h.NewCount++
		}
	}
}

// fnv1a hashes a string for the result cache (FNV-1a).
func fnv1a(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
