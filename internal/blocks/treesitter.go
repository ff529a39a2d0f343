package blocks

import (
	"context"
	"sync"

	"github.com/AgenticCurve/gitsplit/internal/diff"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitterResolver resolves block boundaries with tree-sitter for
// languages the Go toolchain cannot parse. One resolver instance backs
// several languages; ForPython and friends return language-bound views.
type TreeSitterResolver struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewTreeSitterResolver creates the shared tree-sitter parser.
func NewTreeSitterResolver() *TreeSitterResolver {
	return &TreeSitterResolver{parser: sitter.NewParser()}
}

// Close releases the underlying parser.
func (t *TreeSitterResolver) Close() {
	t.parser.Close()
}

// langResolver binds the shared parser to one grammar and the node
// types that count as blocks in that grammar.
type langResolver struct {
	shared    *TreeSitterResolver
	language  *sitter.Language
	blockKind map[string]bool
}

func (t *TreeSitterResolver) ForPython() Resolver {
	return &langResolver{
		shared:   t,
		language: python.GetLanguage(),
		blockKind: map[string]bool{
			"function_definition":  true,
			"class_definition":     true,
			"decorated_definition": true,
		},
	}
}

func (t *TreeSitterResolver) ForJavaScript() Resolver {
	return &langResolver{
		shared:   t,
		language: javascript.GetLanguage(),
		blockKind: map[string]bool{
			"function_declaration": true,
			"class_declaration":    true,
			"method_definition":    true,
			"lexical_declaration":  true,
		},
	}
}

func (t *TreeSitterResolver) ForTypeScript() Resolver {
	return &langResolver{
		shared:   t,
		language: typescript.GetLanguage(),
		blockKind: map[string]bool{
			"function_declaration":  true,
			"class_declaration":     true,
			"method_definition":     true,
			"interface_declaration": true,
			"lexical_declaration":   true,
		},
	}
}

func (l *langResolver) Blocks(content []byte) ([]diff.LineRange, error) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()

	l.shared.parser.SetLanguage(l.language)
	tree, err := l.shared.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var ranges []diff.LineRange
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if l.blockKind[n.Type()] {
			ranges = append(ranges, diff.LineRange{
				Start: int(n.StartPoint().Row) + 1,
				End:   int(n.EndPoint().Row) + 1,
			})
			// Top-level blocks only: nested defs stay inside their parent.
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return ranges, nil
}
