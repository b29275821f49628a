package fingerprint

import (
	"strings"

	"github.com/panbanda/winnow/pkg/ast"
)

// Kind classifies a token for normalization.
type Kind int

const (
	KindText     Kind = iota // emitted verbatim
	KindName                 // generic identifier, emitted as 'V'
	KindFunction             // function or call name, emitted as 'F'
	KindType                 // class/struct/object name, emitted as 'O'
)

// String returns the string representation.
func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindFunction:
		return "function"
	case KindType:
		return "type"
	default:
		return "text"
	}
}

// Symbol returns the canonical symbol for identifier kinds, or 0 for KindText.
func (k Kind) Symbol() byte {
	switch k {
	case KindName:
		return 'V'
	case KindFunction:
		return 'F'
	case KindType:
		return 'O'
	default:
		return 0
	}
}

var (
	typeKeywords     = []string{"class", "struct", "object"}
	functionKeywords = []string{"function", "method", "invocation", "call"}
)

// Offset pairs a canonical-text position with an original byte offset.
type Offset struct {
	Canonical int `json:"canonical"`
	Source    int `json:"source"`
}

// Classify derives a token's Kind from its syntactic context.
// The parent level is checked against the token's own role label; the
// grandparent level against the parent's role label.
func Classify(tok ast.Token) Kind {
	if !tok.IsIdentifier() {
		return KindText
	}
	if tok.Parent == nil {
		return KindName
	}

	if kind, ok := classifyLevel(tok.Parent.Type, tok.Field); ok {
		return kind
	}
	if tok.Grandparent != nil {
		if kind, ok := classifyLevel(tok.Grandparent.Type, tok.Parent.Field); ok {
			return kind
		}
	}
	return KindName
}

func classifyLevel(nodeType, field string) (Kind, bool) {
	if containsAny(nodeType, field, typeKeywords) {
		return KindType, true
	}
	if containsAny(nodeType, field, functionKeywords) {
		return KindFunction, true
	}
	return KindText, false
}

func containsAny(nodeType, field string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(nodeType, kw) || strings.Contains(field, kw) {
			return true
		}
	}
	return false
}

// NormalizeOptions controls token normalization.
type NormalizeOptions struct {
	// IgnoreComments drops comment tokens entirely.
	IgnoreComments bool
}

// Normalize rewrites a token stream into canonical text and the offset
// table mapping canonical positions back to original byte offsets.
// The table starts with (0,0) and gains one entry per emitted token.
func Normalize(tokens []ast.Token, opts NormalizeOptions) (string, []Offset) {
	var sb strings.Builder
	offsets := make([]Offset, 1, len(tokens)+1)

	for _, tok := range tokens {
		if opts.IgnoreComments && tok.IsComment() {
			continue
		}
		if sym := Classify(tok).Symbol(); sym != 0 {
			sb.WriteByte(sym)
		} else {
			sb.WriteString(tok.Text)
		}
		offsets = append(offsets, Offset{Canonical: sb.Len(), Source: tok.EndByte})
	}

	return sb.String(), offsets
}
