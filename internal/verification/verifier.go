package verification

import (
	"context"
	"fmt"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// maxChangeContent bounds how much of a changed line is kept in a
// difference record.
const maxChangeContent = 50

// Change is one added or removed line inside a difference.
type Change struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content"`
}

// Difference locates one divergence between the original branch and
// the split result.
type Difference struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Description string   `json:"description"`
	Changes     []Change `json:"changes,omitempty"`
}

// Result is the outcome of comparing the original branch against the
// stacked split tip.
type Result struct {
	Passed       bool         `json:"passed"`
	OriginalHash string       `json:"original_hash"`
	FinalHash    string       `json:"final_hash"`
	Differences  []Difference `json:"differences,omitempty"`
}

// Diagnosis renders a human-readable account of the result.
func (r Result) Diagnosis() string {
	if r.Passed {
		return "Verification passed - hashes match"
	}
	if len(r.Differences) == 0 {
		return fmt.Sprintf("Hash mismatch: expected %s, got %s", r.OriginalHash, r.FinalHash)
	}
	lines := []string{"Hash mismatch detected:"}
	for _, d := range r.Differences {
		lines = append(lines, fmt.Sprintf("  %s: %s", d.File, d.Description))
	}
	return strings.Join(lines, "\n")
}

// Verifier enforces the split invariant: the content hash of the
// original branch must equal the content hash of the final stacked
// branch. Commit metadata is excluded, only blob contents count.
type Verifier struct {
	git   *gitops.Git
	diffs *diff.Engine
}

// NewVerifier returns a Verifier bound to git's repository.
func NewVerifier(git *gitops.Git) *Verifier {
	return &Verifier{git: git, diffs: diff.NewEngine()}
}

// ContentHash exposes the underlying hash for callers that snapshot
// the original branch before splitting.
func (v *Verifier) ContentHash(ctx context.Context, ref string) (string, error) {
	return v.git.ContentHash(ctx, ref)
}

// VerifySplit compares originalRef against splitTipRef. On mismatch
// the result carries per-file differences for the classifier.
func (v *Verifier) VerifySplit(ctx context.Context, originalRef, splitTipRef string) (*Result, error) {
	originalHash, err := v.git.ContentHash(ctx, originalRef)
	if err != nil {
		return nil, fmt.Errorf("failed to verify split: %w", err)
	}
	finalHash, err := v.git.ContentHash(ctx, splitTipRef)
	if err != nil {
		return nil, fmt.Errorf("failed to verify split: %w", err)
	}

	if originalHash == finalHash {
		logging.Verify("Split verified: %s == %s", originalHash, finalHash)
		return &Result{Passed: true, OriginalHash: originalHash, FinalHash: finalHash}, nil
	}

	logging.Verify("Hash mismatch: original=%s final=%s", originalHash, finalHash)
	differences := v.findDifferences(ctx, originalRef, splitTipRef)
	return &Result{
		Passed:       false,
		OriginalHash: originalHash,
		FinalHash:    finalHash,
		Differences:  differences,
	}, nil
}

// findDifferences diffs the two refs and extracts one record per hunk
// with the changed lines truncated for oracle feedback. Diff failures
// produce an empty list, never an error: the hash mismatch already
// stands on its own.
//
// Git identifies which files diverge; the in-process diff engine then
// recomputes each file's hunks so the extracted lines do not depend on
// git's rename and context heuristics.
func (v *Verifier) findDifferences(ctx context.Context, originalRef, splitTipRef string) []Difference {
	raw, err := v.git.DiffRefs(ctx, originalRef, splitTipRef)
	if err != nil {
		logging.VerifyDebug("Could not diff %s..%s for details: %v", originalRef, splitTipRef, err)
		return nil
	}

	var differences []Difference
	for _, parsed := range diff.Parse(raw) {
		path := parsed.Path()
		if parsed.IsBinary {
			differences = append(differences, Difference{
				File:        path,
				Description: "Binary content differs",
			})
			continue
		}

		origContent, _ := v.git.ShowFile(ctx, originalRef, path)
		splitContent, _ := v.git.ShowFile(ctx, splitTipRef, path)
		fd := v.diffs.Compute(path, path, origContent, splitContent)

		for _, hunk := range fd.Hunks {
			d := Difference{
				File:        fd.Path(),
				Line:        hunk.OldStart,
				Description: fmt.Sprintf("Difference at line %d", hunk.OldStart),
			}
			for _, line := range hunk.Lines {
				if line.Kind == diff.LineContext {
					continue
				}
				changeType := "added"
				if line.Kind == diff.LineDeletion {
					changeType = "removed"
				}
				content := strings.TrimSpace(line.Content)
				if len(content) > maxChangeContent {
					content = content[:maxChangeContent]
				}
				d.Changes = append(d.Changes, Change{Type: changeType, Content: content})
			}
			differences = append(differences, d)
		}
	}
	return differences
}
