package diff

import (
	"testing"
)

const sampleDiff = `diff --git a/internal/auth/login.go b/internal/auth/login.go
index 1111111..2222222 100644
--- a/internal/auth/login.go
+++ b/internal/auth/login.go
@@ -10,6 +10,9 @@ func Login(user string) error {
 	if user == "" {
 		return errInvalid
 	}
-	token := issue(user)
+	token, err := issueChecked(user)
+	if err != nil {
+		return err
+	}
 	return store(token)
 }

diff --git a/README.md b/README.md
index 3333333..4444444 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # project
+Now with login hardening.
`

func TestParseFiles(t *testing.T) {
	files := Parse(sampleDiff)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}

	login := files[0]
	if login.Path() != "internal/auth/login.go" {
		t.Errorf("path = %q", login.Path())
	}
	if len(login.Hunks) != 1 {
		t.Fatalf("got %d hunks, want 1", len(login.Hunks))
	}
	h := login.Hunks[0]
	if h.OldStart != 10 || h.OldCount != 6 || h.NewStart != 10 || h.NewCount != 9 {
		t.Errorf("header = -%d,%d +%d,%d", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	}
	if !h.CountsConsistent() {
		t.Error("hunk body disagrees with header counts")
	}
	if login.Additions() != 4 || login.Deletions() != 1 {
		t.Errorf("stats = +%d -%d, want +4 -1", login.Additions(), login.Deletions())
	}
}

func TestParseOmittedCount(t *testing.T) {
	files := Parse(sampleDiff)
	h := files[1].Hunks[0]
	// "@@ -1 +1,2 @@": an omitted count means 1.
	if h.OldCount != 1 {
		t.Errorf("OldCount = %d, want 1", h.OldCount)
	}
	if h.NewCount != 2 {
		t.Errorf("NewCount = %d, want 2", h.NewCount)
	}
}

func TestParseLineNumbers(t *testing.T) {
	files := Parse(sampleDiff)
	h := files[0].Hunks[0]

	var adds, dels, ctxs []DiffLine
	for _, l := range h.Lines {
		switch {
		case l.IsAddition():
			adds = append(adds, l)
		case l.IsDeletion():
			dels = append(dels, l)
		default:
			ctxs = append(ctxs, l)
		}
	}

	if len(dels) != 1 {
		t.Fatalf("got %d deletions, want 1", len(dels))
	}
	if dels[0].OldLine != 13 || dels[0].NewLine != 0 {
		t.Errorf("deletion at old=%d new=%d, want old=13 new=0", dels[0].OldLine, dels[0].NewLine)
	}
	if adds[0].NewLine != 13 || adds[0].OldLine != 0 {
		t.Errorf("first addition at old=%d new=%d, want old=0 new=13", adds[0].OldLine, adds[0].NewLine)
	}
	if ctxs[0].OldLine != 10 || ctxs[0].NewLine != 10 {
		t.Errorf("first context at old=%d new=%d, want 10/10", ctxs[0].OldLine, ctxs[0].NewLine)
	}
	// One deletion replaced by four additions shifts later lines by 3.
	last := ctxs[len(ctxs)-1]
	if last.NewLine-last.OldLine != 3 {
		t.Errorf("trailing context skew = %d, want 3", last.NewLine-last.OldLine)
	}
}

func TestParseMalformedHunkHeader(t *testing.T) {
	text := "diff --git a/f.go b/f.go\n" +
		"--- a/f.go\n" +
		"+++ b/f.go\n" +
		"@@ garbage @@\n" +
		"+orphan line\n" +
		"@@ -1,1 +1,2 @@\n" +
		" keep\n" +
		"+added\n"
	files := Parse(text)
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if len(files[0].Hunks) != 1 {
		t.Fatalf("got %d hunks, want 1 (malformed header dropped)", len(files[0].Hunks))
	}
	if files[0].Hunks[0].OldStart != 1 {
		t.Errorf("surviving hunk OldStart = %d", files[0].Hunks[0].OldStart)
	}
}

func TestParseBinaryAndNewFile(t *testing.T) {
	text := "diff --git a/logo.png b/logo.png\n" +
		"new file mode 100644\n" +
		"Binary files /dev/null and b/logo.png differ\n"
	files := Parse(text)
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if !files[0].IsBinary || !files[0].IsNew {
		t.Errorf("IsBinary=%v IsNew=%v, want both true", files[0].IsBinary, files[0].IsNew)
	}
	if len(files[0].Hunks) != 0 {
		t.Errorf("binary file has %d hunks", len(files[0].Hunks))
	}
}

func TestParseDropsNoNewlineMarker(t *testing.T) {
	text := "diff --git a/f.go b/f.go\n" +
		"--- a/f.go\n" +
		"+++ b/f.go\n" +
		"@@ -1,2 +1,2 @@\n" +
		" keep\n" +
		"-old\n" +
		"\\ No newline at end of file\n" +
		"+new\n" +
		"\\ No newline at end of file\n"
	files := Parse(text)
	if len(files) != 1 || len(files[0].Hunks) != 1 {
		t.Fatalf("files = %+v", files)
	}

	// The marker is not a hunk line, so patches rebuilt from this hunk
	// always end the file with a newline. Content-hash verification
	// flags the divergence when the source branch omitted it.
	h := files[0].Hunks[0]
	if len(h.Lines) != 3 {
		t.Fatalf("got %d lines, want 3 (marker dropped)", len(h.Lines))
	}
	for _, l := range h.Lines {
		if l.Content == " No newline at end of file" {
			t.Errorf("marker leaked into hunk lines: %+v", l)
		}
	}
	if !h.CountsConsistent() {
		t.Error("dropping the marker must not skew the counts")
	}
}

func TestParseEmpty(t *testing.T) {
	if files := Parse(""); files != nil {
		t.Errorf("Parse(\"\") = %v, want nil", files)
	}
}

func TestLineRange(t *testing.T) {
	r := LineRange{Start: 5, End: 10}
	if !r.Overlaps(LineRange{Start: 10, End: 20}) {
		t.Error("adjacent-inclusive ranges should overlap")
	}
	if r.Overlaps(LineRange{Start: 11, End: 20}) {
		t.Error("disjoint ranges should not overlap")
	}
	if !r.Contains(5) || !r.Contains(10) || r.Contains(11) {
		t.Error("Contains is inclusive on both ends")
	}
	if r.Len() != 6 {
		t.Errorf("Len = %d, want 6", r.Len())
	}
	if (LineRange{Start: 3, End: 2}).Len() != 0 {
		t.Error("inverted range has zero length")
	}
}
