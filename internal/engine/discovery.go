package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/blocks"
	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
	"github.com/AgenticCurve/gitsplit/internal/oracle"
	"github.com/AgenticCurve/gitsplit/internal/session"
)

// rangeMergeGap is how many blank lines between two ranges still count
// as one contiguous region when merging.
const rangeMergeGap = 3

// Discovery runs phase 1: ask the oracle to group the branch diff into
// logical intents, then normalize its answer.
type Discovery struct {
	git    *gitops.Git
	oracle *oracle.Client
	blocks *blocks.Registry
	sess   *session.Session
}

// NewDiscovery wires the discovery phase.
func NewDiscovery(git *gitops.Git, client *oracle.Client, registry *blocks.Registry, sess *session.Session) *Discovery {
	return &Discovery{git: git, oracle: client, blocks: registry, sess: sess}
}

// Discover analyzes the branch diff and returns the oracle's intents,
// post-processed for reliable patch generation. hint optionally steers
// the grouping.
func (d *Discovery) Discover(ctx context.Context, hint string) ([]session.Intent, error) {
	defer logging.StartTimer(logging.CategoryEngine, "discovery").Stop()

	raw, err := d.git.RawDiff(ctx, d.sess.BaseBranch, d.sess.Branch)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("no changes found between %s and %s", d.sess.BaseBranch, d.sess.Branch)
	}
	fileDiffs := diff.Parse(raw)

	d.oracle.ResetConversation(oracle.DiscoverySystemPrompt)
	d.oracle.AddUserMessage(d.buildContext(raw, fileDiffs, hint))

	intents, err := d.complete(ctx, fileDiffs)
	if err != nil {
		return nil, err
	}
	d.sess.DiscoveredIntents = intents
	return intents, nil
}

// RetryWithError reruns discovery on the existing conversation after a
// failure, so the oracle sees its previous answer and what broke.
func (d *Discovery) RetryWithError(ctx context.Context, errText, diagnosis string) ([]session.Intent, error) {
	raw, err := d.git.RawDiff(ctx, d.sess.BaseBranch, d.sess.Branch)
	if err != nil {
		return nil, fmt.Errorf("discovery retry failed: %w", err)
	}
	fileDiffs := diff.Parse(raw)

	d.oracle.AddErrorContext(errText, diagnosis)

	intents, err := d.complete(ctx, fileDiffs)
	if err != nil {
		return nil, err
	}
	d.sess.DiscoveredIntents = intents
	return intents, nil
}

// Rediscover reruns discovery after a backtrack, keeping the listed
// intents as fixed points.
func (d *Discovery) Rediscover(ctx context.Context, preservedIntents []string, errorContext string) ([]session.Intent, error) {
	raw, err := d.git.RawDiff(ctx, d.sess.BaseBranch, d.sess.Branch)
	if err != nil {
		return nil, fmt.Errorf("rediscovery failed: %w", err)
	}
	fileDiffs := diff.Parse(raw)

	d.oracle.AddUserMessage(d.buildRediscoveryContext(raw, fileDiffs, preservedIntents, errorContext))

	newIntents, err := d.complete(ctx, fileDiffs)
	if err != nil {
		return nil, err
	}

	preserved := make(map[string]bool, len(preservedIntents))
	for _, id := range preservedIntents {
		preserved[id] = true
	}
	var final []session.Intent
	for _, intent := range d.sess.DiscoveredIntents {
		if preserved[intent.ID] {
			final = append(final, intent)
		}
	}
	final = append(final, newIntents...)

	d.sess.DiscoveredIntents = final
	return final, nil
}

func (d *Discovery) complete(ctx context.Context, fileDiffs []diff.FileDiff) ([]session.Intent, error) {
	content, err := d.oracle.Complete(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle analysis failed: %w", err)
	}
	resp, err := oracle.ParseDiscovery(content)
	if err != nil {
		return nil, err
	}
	usage := d.oracle.Usage()
	d.sess.TokensUsed = usage.InputTokens + usage.OutputTokens
	d.sess.TotalCost = usage.Cost

	return d.normalize(resp, fileDiffs), nil
}

func (d *Discovery) buildContext(raw string, fileDiffs []diff.FileDiff, hint string) string {
	var b strings.Builder
	b.WriteString("## Changes Summary\n")
	fmt.Fprintf(&b, "Total files changed: %d\n", len(fileDiffs))
	for _, fd := range fileDiffs {
		status := ""
		switch {
		case fd.IsNew:
			status = " (new file)"
		case fd.IsDelete:
			status = " (deleted)"
		case fd.OldPath != fd.NewPath:
			status = fmt.Sprintf(" (renamed from %s)", fd.OldPath)
		}
		fmt.Fprintf(&b, "- %s%s: +%d -%d\n", fd.Path(), status, fd.Additions(), fd.Deletions())
	}
	b.WriteString("\n")

	if hint != "" {
		fmt.Fprintf(&b, "## User Hint\n%s\n\n", hint)
	}

	b.WriteString("## Full Diff\n```diff\n")
	b.WriteString(raw)
	b.WriteString("\n```\n")
	return b.String()
}

func (d *Discovery) buildRediscoveryContext(raw string, fileDiffs []diff.FileDiff, preservedIntents []string, errorContext string) string {
	var b strings.Builder
	b.WriteString("## Previous Attempt Failed\n")
	b.WriteString(errorContext)
	b.WriteString("\n\nPlease re-analyze and provide updated intents.\n\n")

	preserved := make(map[string]bool, len(preservedIntents))
	for _, id := range preservedIntents {
		preserved[id] = true
	}

	preservedFiles := make(map[string]bool)
	if len(preservedIntents) > 0 {
		b.WriteString("## Preserved Intents (do not change these)\n")
		for _, intent := range d.sess.DiscoveredIntents {
			if !preserved[intent.ID] {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", intent.ID, intent.Name)
			for _, f := range intent.Files {
				fmt.Fprintf(&b, "  - %s\n", f.Path)
				preservedFiles[f.Path] = true
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Remaining Changes to Analyze\n")
	for _, fd := range fileDiffs {
		if !preservedFiles[fd.Path()] {
			fmt.Fprintf(&b, "- %s: +%d -%d\n", fd.Path(), fd.Additions(), fd.Deletions())
		}
	}

	b.WriteString("\n## Full Diff\n```diff\n")
	b.WriteString(raw)
	b.WriteString("\n```\n")
	return b.String()
}

// normalize converts the oracle response into session intents and
// applies the three post-processing passes that make patch generation
// reliable: whole-file promotion, overlap fixing, and block expansion.
func (d *Discovery) normalize(resp *oracle.DiscoveryResponse, fileDiffs []diff.FileDiff) []session.Intent {
	diffsByPath := make(map[string]*diff.FileDiff, len(fileDiffs))
	for i := range fileDiffs {
		diffsByPath[fileDiffs[i].Path()] = &fileDiffs[i]
	}

	intents := make([]session.Intent, 0, len(resp.Intents))
	for i, spec := range resp.Intents {
		id := spec.ID
		if id == "" {
			id = fmt.Sprintf("intent-%c", 'a'+i)
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("Intent %c", 'A'+i)
		}

		var files []session.FileChange
		for _, f := range spec.Files {
			fc := session.FileChange{Path: f.Path, IsEntireFile: f.IsEntireFile}
			for _, r := range f.LineRanges {
				fc.LineRanges = append(fc.LineRanges, r.Range())
			}

			if fd := diffsByPath[f.Path]; fd != nil {
				if fc.IsEntireFile {
					fc.Additions = fd.Additions()
					fc.Deletions = fd.Deletions()
				} else {
					// Apportion the file's stats by range coverage.
					totalLines := 0
					for _, r := range fc.LineRanges {
						totalLines += r.Len()
					}
					denom := fd.Additions() + fd.Deletions()
					if denom < 1 {
						denom = 1
					}
					ratio := float64(totalLines) / float64(denom)
					fc.Additions = int(float64(fd.Additions()) * ratio)
					fc.Deletions = int(float64(fd.Deletions()) * ratio)
				}
			}
			files = append(files, fc)
		}

		intents = append(intents, session.Intent{
			ID:          id,
			Name:        name,
			Description: spec.Description,
			Files:       files,
		})
	}

	intents = d.optimizeFileAssignments(intents, diffsByPath)
	intents = fixOverlappingRanges(intents)
	intents = d.expandToCompleteBlocks(intents)
	return intents
}

// optimizeFileAssignments promotes files claimed by exactly one intent
// to whole-file changes, sidestepping line misattribution entirely.
func (d *Discovery) optimizeFileAssignments(intents []session.Intent, diffsByPath map[string]*diff.FileDiff) []session.Intent {
	count := make(map[string]int)
	for _, intent := range intents {
		for _, fc := range intent.Files {
			count[fc.Path]++
		}
	}

	for i := range intents {
		for j := range intents[i].Files {
			fc := &intents[i].Files[j]
			if count[fc.Path] != 1 || fc.IsEntireFile {
				continue
			}
			fc.IsEntireFile = true
			fc.LineRanges = nil
			if fd := diffsByPath[fc.Path]; fd != nil {
				fc.Additions = fd.Additions()
				fc.Deletions = fd.Deletions()
			}
			logging.EngineDebug("Promoted %s to entire-file for intent %s", fc.Path, intents[i].ID)
		}
	}
	return intents
}

// fixOverlappingRanges trims ranges so no two intents claim the same
// lines of a file. The earlier-starting range wins; the later one is
// shifted past it or dropped when fully consumed.
func fixOverlappingRanges(intents []session.Intent) []session.Intent {
	type claim struct {
		intentIdx int
		rangeIdx  int
		start     int
	}
	fileClaims := make(map[string][]claim)

	for ii := range intents {
		for _, fc := range intents[ii].Files {
			if fc.IsEntireFile {
				continue
			}
			for ri, lr := range fc.LineRanges {
				fileClaims[fc.Path] = append(fileClaims[fc.Path], claim{ii, ri, lr.Start})
			}
		}
	}

	rangeAt := func(c claim, path string) (*session.FileChange, *diff.LineRange) {
		for j := range intents[c.intentIdx].Files {
			f := &intents[c.intentIdx].Files[j]
			if f.Path == path && c.rangeIdx < len(f.LineRanges) {
				return f, &f.LineRanges[c.rangeIdx]
			}
		}
		return nil, nil
	}

	for path, claims := range fileClaims {
		if len(claims) < 2 {
			continue
		}
		sort.Slice(claims, func(a, b int) bool { return claims[a].start < claims[b].start })

		for i := 0; i < len(claims)-1; i++ {
			curr, next := claims[i], claims[i+1]
			if curr.intentIdx == next.intentIdx {
				continue
			}
			_, currRange := rangeAt(curr, path)
			nextFile, nextRange := rangeAt(next, path)
			if currRange == nil || nextRange == nil {
				continue
			}
			if currRange.End < nextRange.Start {
				continue
			}

			newStart := currRange.End + 1
			if newStart <= nextRange.End {
				nextRange.Start = newStart
			} else {
				// Fully consumed by the earlier claim.
				nextFile.LineRanges = append(
					nextFile.LineRanges[:next.rangeIdx],
					nextFile.LineRanges[next.rangeIdx+1:]...)
			}
			logging.EngineDebug("Fixed overlapping ranges in %s between intents %s and %s",
				path, intents[curr.intentIdx].ID, intents[next.intentIdx].ID)
		}
	}
	return intents
}

// expandToCompleteBlocks grows ranges so no function or class is cut
// in half, then merges ranges separated by small gaps.
func (d *Discovery) expandToCompleteBlocks(intents []session.Intent) []session.Intent {
	ctx := context.Background()
	for i := range intents {
		for j := range intents[i].Files {
			fc := &intents[i].Files[j]
			if fc.IsEntireFile || len(fc.LineRanges) == 0 {
				continue
			}
			if _, ok := d.blocks.Lookup(fc.Path); !ok {
				continue
			}

			content, ok := d.git.ShowFile(ctx, d.sess.Branch, fc.Path)
			if !ok {
				continue
			}
			expanded := d.blocks.Expand(fc.Path, []byte(content), fc.LineRanges)
			fc.LineRanges = blocks.Merge(expanded, rangeMergeGap)
		}
	}
	return intents
}
