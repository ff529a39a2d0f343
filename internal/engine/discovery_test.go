package engine

import (
	"testing"

	"github.com/AgenticCurve/gitsplit/internal/blocks"
	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/oracle"
	"github.com/AgenticCurve/gitsplit/internal/session"
)

// testDiscovery builds a Discovery with no git binding. Tests use file
// extensions without a block resolver so expansion never reaches git.
func testDiscovery() *Discovery {
	return &Discovery{
		blocks: blocks.NewRegistry(),
		sess:   session.New("feature/big", "main"),
	}
}

// fileDiffWith builds a FileDiff with the given totals.
func fileDiffWith(path string, adds, dels int) diff.FileDiff {
	h := diff.Hunk{OldStart: 1, NewStart: 1}
	for i := 0; i < adds; i++ {
		h.Lines = append(h.Lines, diff.DiffLine{Kind: diff.LineAddition, Content: "a"})
	}
	for i := 0; i < dels; i++ {
		h.Lines = append(h.Lines, diff.DiffLine{Kind: diff.LineDeletion, Content: "d"})
	}
	return diff.FileDiff{OldPath: path, NewPath: path, Hunks: []diff.Hunk{h}}
}

func TestNormalizeFallbackIDs(t *testing.T) {
	d := testDiscovery()
	resp := &oracle.DiscoveryResponse{
		Intents: []oracle.IntentSpec{
			{Files: []oracle.IntentFile{{Path: "a.txt", IsEntireFile: true}}},
			{Files: []oracle.IntentFile{{Path: "b.txt", IsEntireFile: true}}},
		},
	}

	intents := d.normalize(resp, []diff.FileDiff{
		fileDiffWith("a.txt", 3, 1),
		fileDiffWith("b.txt", 2, 0),
	})

	if intents[0].ID != "intent-a" || intents[1].ID != "intent-b" {
		t.Errorf("fallback IDs = %s, %s", intents[0].ID, intents[1].ID)
	}
	if intents[0].Name != "Intent A" || intents[1].Name != "Intent B" {
		t.Errorf("fallback names = %s, %s", intents[0].Name, intents[1].Name)
	}
}

func TestNormalizeWholeFileStats(t *testing.T) {
	d := testDiscovery()
	resp := &oracle.DiscoveryResponse{
		Intents: []oracle.IntentSpec{
			{ID: "intent-a", Name: "A", Files: []oracle.IntentFile{{Path: "a.txt", IsEntireFile: true}}},
		},
	}

	intents := d.normalize(resp, []diff.FileDiff{fileDiffWith("a.txt", 7, 2)})
	fc := intents[0].Files[0]
	if fc.Additions != 7 || fc.Deletions != 2 {
		t.Errorf("stats = +%d -%d, want +7 -2", fc.Additions, fc.Deletions)
	}
}

func TestNormalizePromotesSingleClaimant(t *testing.T) {
	d := testDiscovery()
	resp := &oracle.DiscoveryResponse{
		Intents: []oracle.IntentSpec{
			{
				ID:   "intent-a",
				Name: "A",
				Files: []oracle.IntentFile{
					{Path: "solo.txt", LineRanges: []oracle.LinePair{{Start: 3, End: 9}}},
					{Path: "shared.txt", LineRanges: []oracle.LinePair{{Start: 1, End: 5}}},
				},
			},
			{
				ID:   "intent-b",
				Name: "B",
				Files: []oracle.IntentFile{
					{Path: "shared.txt", LineRanges: []oracle.LinePair{{Start: 10, End: 20}}},
				},
			},
		},
	}

	intents := d.normalize(resp, []diff.FileDiff{
		fileDiffWith("solo.txt", 4, 1),
		fileDiffWith("shared.txt", 10, 0),
	})

	solo := intents[0].Files[0]
	if !solo.IsEntireFile {
		t.Error("file claimed by one intent should be promoted to entire-file")
	}
	if solo.LineRanges != nil {
		t.Errorf("promoted file keeps ranges: %v", solo.LineRanges)
	}
	if solo.Additions != 4 || solo.Deletions != 1 {
		t.Errorf("promoted stats = +%d -%d, want the file totals", solo.Additions, solo.Deletions)
	}

	shared := intents[0].Files[1]
	if shared.IsEntireFile {
		t.Error("file claimed by two intents must stay partial")
	}
}

func TestNormalizeResolvesOverlaps(t *testing.T) {
	d := testDiscovery()
	resp := &oracle.DiscoveryResponse{
		Intents: []oracle.IntentSpec{
			{ID: "intent-a", Name: "A", Files: []oracle.IntentFile{
				{Path: "f.txt", LineRanges: []oracle.LinePair{{Start: 1, End: 10}}},
			}},
			{ID: "intent-b", Name: "B", Files: []oracle.IntentFile{
				{Path: "f.txt", LineRanges: []oracle.LinePair{{Start: 5, End: 15}}},
			}},
		},
	}

	intents := d.normalize(resp, []diff.FileDiff{fileDiffWith("f.txt", 15, 0)})

	a := intents[0].Files[0].LineRanges[0]
	b := intents[1].Files[0].LineRanges[0]
	if a.Overlaps(b) {
		t.Errorf("ranges still overlap after normalization: %+v vs %+v", a, b)
	}
	if b.Start != 11 {
		t.Errorf("later range starts at %d, want shifted to 11", b.Start)
	}
}
