package blocks

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		input  []diff.LineRange
		maxGap int
		want   []diff.LineRange
	}{
		{
			name:   "disjoint",
			input:  []diff.LineRange{{Start: 1, End: 3}, {Start: 10, End: 12}},
			maxGap: 0,
			want:   []diff.LineRange{{Start: 1, End: 3}, {Start: 10, End: 12}},
		},
		{
			name:   "overlapping",
			input:  []diff.LineRange{{Start: 1, End: 5}, {Start: 4, End: 9}},
			maxGap: 0,
			want:   []diff.LineRange{{Start: 1, End: 9}},
		},
		{
			name:   "adjacent",
			input:  []diff.LineRange{{Start: 1, End: 5}, {Start: 6, End: 9}},
			maxGap: 0,
			want:   []diff.LineRange{{Start: 1, End: 9}},
		},
		{
			name:   "within_gap",
			input:  []diff.LineRange{{Start: 1, End: 5}, {Start: 9, End: 12}},
			maxGap: 3,
			want:   []diff.LineRange{{Start: 1, End: 12}},
		},
		{
			name:   "beyond_gap",
			input:  []diff.LineRange{{Start: 1, End: 5}, {Start: 10, End: 12}},
			maxGap: 3,
			want:   []diff.LineRange{{Start: 1, End: 5}, {Start: 10, End: 12}},
		},
		{
			name:   "unsorted_input",
			input:  []diff.LineRange{{Start: 20, End: 25}, {Start: 1, End: 3}, {Start: 2, End: 6}},
			maxGap: 0,
			want:   []diff.LineRange{{Start: 1, End: 6}, {Start: 20, End: 25}},
		},
		{
			name:   "contained",
			input:  []diff.LineRange{{Start: 1, End: 30}, {Start: 5, End: 10}},
			maxGap: 0,
			want:   []diff.LineRange{{Start: 1, End: 30}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.input, tt.maxGap)
			if d := cmp.Diff(tt.want, got); d != "" {
				t.Errorf("mismatch (-want +got):\n%s", d)
			}
		})
	}
}

const goSource = `package sample

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}

type Thing struct {
	ID int
}

func (t Thing) String() string {
	return fmt.Sprint(t.ID)
}
`

func TestGoResolverBlocks(t *testing.T) {
	var r GoResolver
	blocks, err := r.Blocks([]byte(goSource))
	if err != nil {
		t.Fatal(err)
	}
	// package clause is not a block: import decl, Greet (with doc
	// comment), type decl, method.
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks: %v", len(blocks), blocks)
	}

	greet := blocks[1]
	if greet.Start != 5 {
		t.Errorf("Greet starts at %d, want 5 (doc comment included)", greet.Start)
	}
	if greet.End != 8 {
		t.Errorf("Greet ends at %d, want 8", greet.End)
	}
}

func TestGoResolverUnparseable(t *testing.T) {
	var r GoResolver
	if _, err := r.Blocks([]byte("func broken(( {")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	for _, path := range []string{"a.go", "b.py", "c.js", "d.jsx", "e.ts", "f.tsx", "dir/G.GO"} {
		if _, ok := reg.Lookup(path); !ok {
			t.Errorf("no resolver for %s", path)
		}
	}
	if _, ok := reg.Lookup("notes.txt"); ok {
		t.Error("unexpected resolver for .txt")
	}
}

func TestExpandGrowsToBlock(t *testing.T) {
	reg := NewRegistry()
	// A range touching one line of Greet's body must grow to the whole
	// function, doc comment included.
	got := reg.Expand("sample.go", []byte(goSource), []diff.LineRange{{Start: 7, End: 7}})
	want := []diff.LineRange{{Start: 5, End: 8}}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}
}

func TestExpandUnknownType(t *testing.T) {
	reg := NewRegistry()
	in := []diff.LineRange{{Start: 2, End: 4}}
	got := reg.Expand("README.md", []byte("# heading\ntext\n"), in)
	if d := cmp.Diff(in, got); d != "" {
		t.Errorf("unknown file type must keep ranges (-want +got):\n%s", d)
	}
}

func TestExpandUnparseableContent(t *testing.T) {
	reg := NewRegistry()
	in := []diff.LineRange{{Start: 1, End: 2}}
	got := reg.Expand("broken.go", []byte("func broken(( {"), in)
	if d := cmp.Diff(in, got); d != "" {
		t.Errorf("unparseable content must keep ranges (-want +got):\n%s", d)
	}
}
