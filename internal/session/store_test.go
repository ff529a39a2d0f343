package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

func sampleSession(branch string) *Session {
	s := New(branch, "main")
	s.Phase = PhasePlanning
	s.OriginalHash = "deadbeefcafe0123"
	s.DiscoveredIntents = []Intent{
		{
			ID:          "intent-a",
			Name:        "Add retry logic",
			Description: "Wrap the client in exponential backoff",
			Files: []FileChange{
				{Path: "client.go", LineRanges: []diff.LineRange{{Start: 10, End: 42}}, Additions: 20, Deletions: 3},
			},
		},
		{
			ID:    "intent-b",
			Name:  "Fix typos",
			Files: []FileChange{{Path: "README.md", IsEntireFile: true, Additions: 2}},
		},
	}
	s.Backtracks = []Backtrack{
		{FromPhase: PhaseVerification, ToPhase: PhasePlanning, Reason: "line misattribution", Attempt: 2},
	}
	s.TokensUsed = 1234
	s.TotalCost = 0.0456
	return s
}

func TestJSONStoreRoundTrip(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	want := sampleSession("feature/big-refactor")
	require.NoError(t, store.Save(want))

	got, err := store.Load(want.ID)
	require.NoError(t, err)

	// Save stamps UpdatedAt; everything else must survive unchanged.
	if d := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Second)); d != "" {
		t.Errorf("session mismatch (-want +got):\n%s", d)
	}
}

func TestJSONStoreLoadMissing(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("20990101-000000-ffffffff")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStoreLatest(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	older := sampleSession("feature/one")
	older.ID = GenerateID(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	newer := sampleSession("feature/two")
	newer.ID = GenerateID(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))

	got, err := store.Latest("")
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)

	got, err = store.Latest("feature/one")
	require.NoError(t, err)
	require.Equal(t, older.ID, got.ID)

	_, err = store.Latest("feature/none")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStoreListSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleSession("feature/ok")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "feature/ok", summaries[0].Branch)
}

func TestJSONStoreDelete(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	s := sampleSession("feature/gone")
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Delete(s.ID))
	require.ErrorIs(t, store.Delete(s.ID), ErrNotFound)

	_, err = store.Load(s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateIDSortable(t *testing.T) {
	a := GenerateID(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	b := GenerateID(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	if a >= b {
		t.Errorf("IDs not chronologically sortable: %s >= %s", a, b)
	}
}

func TestSessionTerminal(t *testing.T) {
	s := New("feature/x", "main")
	if s.Terminal() {
		t.Error("fresh session must not be terminal")
	}
	s.Phase = PhaseComplete
	if !s.Terminal() {
		t.Error("complete session is terminal")
	}
	s.Phase = PhaseFailed
	if !s.Terminal() {
		t.Error("failed session is terminal")
	}
}
