package blocks

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// GoResolver finds top-level declaration spans using the standard
// go/parser. Comments attached to a declaration count as part of its
// block so a split carries doc comments along with the code.
type GoResolver struct{}

func (g *GoResolver) Blocks(content []byte) ([]diff.LineRange, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var ranges []diff.LineRange
	for _, decl := range file.Decls {
		start := decl.Pos()
		end := decl.End()

		// Pull leading doc comments into the block.
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
		case *ast.GenDecl:
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
		}

		ranges = append(ranges, diff.LineRange{
			Start: fset.Position(start).Line,
			End:   fset.Position(end).Line,
		})
	}
	return ranges, nil
}
