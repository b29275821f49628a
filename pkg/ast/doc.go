// Package ast provides the grammar provider abstraction that turns source
// bytes into a stream of classified leaf tokens.
//
// A Provider is bound to one language. Providers are collected in a Registry
// that resolves a language name or alias to its provider, so callers select a
// grammar by identifier instead of reaching for parser entry points directly.
// The tree-sitter implementation lives in the treesitter subpackage.
//
// Usage:
//
//	reg := treesitter.NewRegistry()
//
//	p, err := reg.Lookup("py")
//	if err != nil {
//	    return err // wraps ErrUnsupportedLanguage
//	}
//
//	tokens, err := p.Tokenize(ctx, source)
//	if err != nil {
//	    return err // wraps ErrParseFailure
//	}
//
//	for _, tok := range tokens {
//	    fmt.Printf("%q [%d,%d) %s\n", tok.Text, tok.StartByte, tok.EndByte, tok.Type)
//	}
package ast
