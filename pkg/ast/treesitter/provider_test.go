package treesitter

import (
	"context"
	"strings"
	"testing"

	"github.com/panbanda/winnow/pkg/ast"
	"github.com/panbanda/winnow/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ ast.Provider = (*Provider)(nil)
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(parser.LangUnknown)
	require.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	assert.Len(t, reg.Languages(), len(parser.Languages))

	tests := []struct {
		name string
		want ast.Language
	}{
		{"python", "python"},
		{"py", "python"},
		{"js", "javascript"},
		{"javascript", "javascript"},
		{"golang", "go"},
		{"c++", "cpp"},
		{"jsx", "tsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := reg.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Language())
		})
	}

	_, err := reg.Lookup("brainfuck")
	assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
}

func tokenize(t *testing.T, lang parser.Language, src string) []ast.Token {
	t.Helper()
	p, err := New(lang)
	require.NoError(t, err)
	tokens, err := p.Tokenize(context.Background(), []byte(src))
	require.NoError(t, err)
	return tokens
}

func findToken(tokens []ast.Token, text string) *ast.Token {
	for i := range tokens {
		if tokens[i].Text == text {
			return &tokens[i]
		}
	}
	return nil
}

func TestTokenize_PythonFunction(t *testing.T) {
	src := "def add(a, b):\n    return a + b\n"
	tokens := tokenize(t, parser.LangPython, src)
	require.NotEmpty(t, tokens)

	var joined strings.Builder
	prevEnd := 0
	for _, tok := range tokens {
		assert.GreaterOrEqual(t, tok.StartByte, prevEnd, "tokens must not overlap")
		assert.Less(t, tok.StartByte, tok.EndByte)
		assert.LessOrEqual(t, tok.EndByte, len(src))
		assert.Equal(t, src[tok.StartByte:tok.EndByte], tok.Text)
		joined.WriteString(tok.Text)
		prevEnd = tok.EndByte
	}
	assert.Equal(t, "defadd(a,b):returna+b", joined.String())

	name := findToken(tokens, "add")
	require.NotNil(t, name)
	assert.Equal(t, "identifier", name.Type)
	assert.Equal(t, "name", name.Field)
	require.NotNil(t, name.Parent)
	assert.Equal(t, "function_definition", name.Parent.Type)

	kw := findToken(tokens, "def")
	require.NotNil(t, kw)
	assert.False(t, kw.IsIdentifier())
}

func TestTokenize_PythonClass(t *testing.T) {
	tokens := tokenize(t, parser.LangPython, "class Foo:\n    pass\n")

	name := findToken(tokens, "Foo")
	require.NotNil(t, name)
	assert.Equal(t, "name", name.Field)
	require.NotNil(t, name.Parent)
	assert.Equal(t, "class_definition", name.Parent.Type)
	require.NotNil(t, name.Grandparent)
	assert.Equal(t, "module", name.Grandparent.Type)
}

func TestTokenize_JavaScriptCall(t *testing.T) {
	tokens := tokenize(t, parser.LangJavaScript, "function f(x) { return g(x); }\n")

	callee := findToken(tokens, "g")
	require.NotNil(t, callee)
	assert.Equal(t, "identifier", callee.Type)
	assert.Equal(t, "function", callee.Field)
	require.NotNil(t, callee.Parent)
	assert.Equal(t, "call_expression", callee.Parent.Type)
}

func TestTokenize_FieldNone(t *testing.T) {
	tokens := tokenize(t, parser.LangPython, "x = 1\n")
	for _, tok := range tokens {
		assert.NotEmpty(t, tok.Field, "every token carries a role label")
	}
	eq := findToken(tokens, "=")
	require.NotNil(t, eq)
	assert.Equal(t, ast.FieldNone, eq.Field)
}

func TestTokenize_Empty(t *testing.T) {
	tokens := tokenize(t, parser.LangPython, "")
	assert.Empty(t, tokens)
}

func TestTokenize_Concurrent(t *testing.T) {
	p, err := New(parser.LangGo)
	require.NoError(t, err)

	src := []byte("package main\n\nfunc main() { println(\"hi\") }\n")
	done := make(chan []ast.Token, 8)
	for range 8 {
		go func() {
			tokens, err := p.Tokenize(context.Background(), src)
			if err != nil {
				done <- nil
				return
			}
			done <- tokens
		}()
	}
	var first []ast.Token
	for range 8 {
		tokens := <-done
		require.NotNil(t, tokens)
		if first == nil {
			first = tokens
			continue
		}
		assert.Equal(t, first, tokens)
	}
}
