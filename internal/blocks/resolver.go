package blocks

import (
	"path/filepath"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// Resolver reports the line spans of top-level code blocks (functions,
// methods, classes, type declarations) in a source file. Line numbers
// are 1-indexed and inclusive.
type Resolver interface {
	Blocks(content []byte) ([]diff.LineRange, error)
}

// Registry maps file extensions to block resolvers. Files whose
// extension has no resolver keep their ranges untouched.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry returns a registry with the built-in resolvers: go/ast
// for Go files and tree-sitter for Python, JavaScript and TypeScript.
func NewRegistry() *Registry {
	r := &Registry{resolvers: make(map[string]Resolver)}
	r.Register(".go", &GoResolver{})

	ts := NewTreeSitterResolver()
	r.Register(".py", ts.ForPython())
	r.Register(".js", ts.ForJavaScript())
	r.Register(".jsx", ts.ForJavaScript())
	r.Register(".ts", ts.ForTypeScript())
	r.Register(".tsx", ts.ForTypeScript())
	return r
}

// Register binds a resolver to a file extension (including the dot).
func (r *Registry) Register(ext string, resolver Resolver) {
	r.resolvers[strings.ToLower(ext)] = resolver
}

// Lookup returns the resolver for path's extension, if any.
func (r *Registry) Lookup(path string) (Resolver, bool) {
	resolver, ok := r.resolvers[strings.ToLower(filepath.Ext(path))]
	return resolver, ok
}

// Expand grows each range to cover any block it intersects, so a split
// never ships half a function. Unknown file types and unparseable
// content return the input ranges unchanged: a best-effort expansion
// must not block a split.
func (r *Registry) Expand(path string, content []byte, ranges []diff.LineRange) []diff.LineRange {
	resolver, ok := r.Lookup(path)
	if !ok {
		return ranges
	}

	blocks, err := resolver.Blocks(content)
	if err != nil {
		logging.EngineDebug("Block resolution failed for %s, keeping ranges as-is: %v", path, err)
		return ranges
	}
	if len(blocks) == 0 {
		return ranges
	}

	expanded := make([]diff.LineRange, 0, len(ranges))
	for _, rng := range ranges {
		out := rng
		for _, b := range blocks {
			if b.Overlaps(out) {
				if b.Start < out.Start {
					out.Start = b.Start
				}
				if b.End > out.End {
					out.End = b.End
				}
			}
		}
		expanded = append(expanded, out)
	}
	return Merge(expanded, 0)
}

// Merge sorts ranges and joins any pair that overlaps or sits within
// maxGap lines of each other.
func Merge(ranges []diff.LineRange, maxGap int) []diff.LineRange {
	if len(ranges) <= 1 {
		return ranges
	}

	sorted := make([]diff.LineRange, len(ranges))
	copy(sorted, ranges)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	merged := []diff.LineRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+maxGap+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
