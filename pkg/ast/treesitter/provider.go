package treesitter

import (
	"context"
	"fmt"

	"github.com/panbanda/winnow/pkg/ast"
	"github.com/panbanda/winnow/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// Provider implements ast.Provider using a tree-sitter grammar.
// Each Tokenize call uses its own parser, so a Provider is safe for concurrent use.
type Provider struct {
	lang parser.Language
}

// New creates a tree-sitter provider for lang.
func New(lang parser.Language) (*Provider, error) {
	if _, err := parser.GetTreeSitterLanguage(lang); err != nil {
		return nil, fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, lang)
	}
	return &Provider{lang: lang}, nil
}

// NewRegistry returns a registry holding a provider for every bundled grammar.
func NewRegistry() *ast.Registry {
	reg := ast.NewRegistry()
	for _, lang := range parser.Languages {
		reg.Register(&Provider{lang: lang}, parser.Aliases(lang)...)
	}
	return reg
}

// Language returns the language this provider handles.
func (p *Provider) Language() ast.Language {
	return ast.Language(p.lang)
}

// Tokenize parses source and returns its leaf tokens in document order.
func (p *Provider) Tokenize(ctx context.Context, source []byte) ([]ast.Token, error) {
	psr := parser.New()
	defer psr.Close()

	result, err := psr.Parse(ctx, source, p.lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ast.ErrParseFailure, p.lang, err)
	}
	defer result.Close()

	cursor := sitter.NewTreeCursor(result.Tree.RootNode())
	defer cursor.Close()

	w := &leafWalker{source: source}
	w.visit(cursor)
	return w.tokens, nil
}

// leafWalker collects leaves while tracking the ancestor chain.
type leafWalker struct {
	source    []byte
	ancestors []ast.NodeContext
	tokens    []ast.Token
}

func (w *leafWalker) visit(c *sitter.TreeCursor) {
	node := c.CurrentNode()
	field := c.CurrentFieldName()
	if field == "" {
		field = ast.FieldNone
	}

	if node.ChildCount() == 0 {
		w.emit(node, field)
		return
	}

	w.ancestors = append(w.ancestors, ast.NodeContext{Type: node.Type(), Field: field})
	if c.GoToFirstChild() {
		for {
			w.visit(c)
			if !c.GoToNextSibling() {
				break
			}
		}
		c.GoToParent()
	}
	w.ancestors = w.ancestors[:len(w.ancestors)-1]
}

func (w *leafWalker) emit(node *sitter.Node, field string) {
	start, end := int(node.StartByte()), int(node.EndByte())
	// MISSING nodes inserted by error recovery have no width.
	if start >= end {
		return
	}

	tok := ast.Token{
		Text:      parser.GetNodeText(node, w.source),
		StartByte: start,
		EndByte:   end,
		Type:      node.Type(),
		Field:     field,
	}
	if n := len(w.ancestors); n > 0 {
		parent := w.ancestors[n-1]
		tok.Parent = &parent
		if n > 1 {
			grandparent := w.ancestors[n-2]
			tok.Grandparent = &grandparent
		}
	}
	w.tokens = append(w.tokens, tok)
}
