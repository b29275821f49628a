package ast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedLanguage is returned when no provider is registered for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrParseFailure is returned when a provider cannot build a token stream.
var ErrParseFailure = errors.New("parse failure")

// FieldNone is the role label of a node its parent assigns no field name to.
const FieldNone = "None"

// Language identifies the grammar a provider handles.
type Language string

// NodeContext describes an ancestor of a token.
type NodeContext struct {
	Type  string // syntactic category, e.g. "call" or "class_definition"
	Field string // role label assigned by this node's own parent, FieldNone if absent
}

// Token is a leaf of the syntax tree.
type Token struct {
	Text      string
	StartByte int
	EndByte   int
	Type      string
	Field     string

	// Parent and Grandparent are nil when the token has no such ancestor.
	Parent      *NodeContext
	Grandparent *NodeContext
}

// IsIdentifier reports whether the token's category is identifier-like
// (identifier, type_identifier, property_identifier, ...).
func (t Token) IsIdentifier() bool {
	return strings.Contains(t.Type, "identifier")
}

// IsComment reports whether the token is a comment.
func (t Token) IsComment() bool {
	return strings.Contains(t.Type, "comment")
}

// Provider tokenizes source code for a single language.
type Provider interface {
	// Language returns the language this provider handles.
	Language() Language

	// Tokenize returns the ordered leaf tokens of source.
	// Returns an error wrapping ErrParseFailure if no tree can be built.
	Tokenize(ctx context.Context, source []byte) ([]Token, error)
}

// Registry maps language identifiers and aliases to providers.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[Language]Provider
	aliases   map[string]Language
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Language]Provider),
		aliases:   make(map[string]Language),
	}
}

// Register adds a provider under its language name and the given aliases.
// Registering the same language twice replaces the earlier provider.
func (r *Registry) Register(p Provider, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lang := p.Language()
	r.providers[lang] = p
	for _, a := range aliases {
		r.aliases[normalizeName(a)] = lang
	}
}

// Lookup resolves a language name or alias to its provider.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := normalizeName(name)
	lang := Language(n)
	if alias, ok := r.aliases[n]; ok {
		lang = alias
	}
	if p, ok := r.providers[lang]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, name)
}

// Languages returns the registered languages, sorted.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]Language, 0, len(r.providers))
	for lang := range r.providers {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// AliasesOf returns the aliases registered for lang, sorted.
func (r *Registry) AliasesOf(lang Language) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for alias, l := range r.aliases {
		if l == lang {
			names = append(names, alias)
		}
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
