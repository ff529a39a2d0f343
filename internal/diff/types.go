// Package diff parses and computes unified diffs as addressable,
// line-numbered structures. Every line in a hunk carries its position
// in the old and/or new file so that callers can slice a diff by
// new-file line ranges without re-deriving positions.
package diff

// LineKind classifies a single diff line.
type LineKind int

const (
	LineContext  LineKind = iota // Unchanged line, present in both files
	LineAddition                 // Line only in the new file
	LineDeletion                 // Line only in the old file
)

// DiffLine is one line of a hunk body. OldLine/NewLine are 1-indexed;
// zero means the line has no position in that file (additions have no
// OldLine, deletions have no NewLine).
type DiffLine struct {
	Content string
	Kind    LineKind
	OldLine int
	NewLine int
}

// IsAddition reports whether the line exists only in the new file.
func (l DiffLine) IsAddition() bool { return l.Kind == LineAddition }

// IsDeletion reports whether the line exists only in the old file.
func (l DiffLine) IsDeletion() bool { return l.Kind == LineDeletion }

// IsContext reports whether the line is unchanged.
func (l DiffLine) IsContext() bool { return l.Kind == LineContext }

// Hunk is a contiguous change region from a unified diff.
// Invariant: OldCount equals the number of context+deletion lines and
// NewCount the number of context+addition lines. A hunk violating this
// cannot be used for synthesis.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []DiffLine
	Header   string
}

// CountsConsistent recounts the body lines against the header counts.
func (h *Hunk) CountsConsistent() bool {
	oldCount, newCount := 0, 0
	for _, l := range h.Lines {
		if l.Kind == LineContext || l.Kind == LineDeletion {
			oldCount++
		}
		if l.Kind == LineContext || l.Kind == LineAddition {
			newCount++
		}
	}
	return oldCount == h.OldCount && newCount == h.NewCount
}

// FileDiff is the complete diff for one file.
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
	IsBinary bool
}

// Path returns the file's effective path (new path, falling back to old).
func (f *FileDiff) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// Additions counts added lines across all hunks.
func (f *FileDiff) Additions() int {
	n := 0
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineAddition {
				n++
			}
		}
	}
	return n
}

// Deletions counts deleted lines across all hunks.
func (f *FileDiff) Deletions() int {
	n := 0
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Kind == LineDeletion {
				n++
			}
		}
	}
	return n
}

// LineRange is an inclusive, 1-indexed range of lines in the NEW file.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether the ranges share at least one line.
func (r LineRange) Overlaps(other LineRange) bool {
	return !(r.End < other.Start || other.End < r.Start)
}

// Contains reports whether line falls inside the range.
func (r LineRange) Contains(line int) bool {
	return r.Start <= line && line <= r.End
}

// Len returns the number of lines covered by the range.
func (r LineRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}
