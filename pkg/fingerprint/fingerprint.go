package fingerprint

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/winnow/pkg/ast"
	"github.com/zeebo/blake3"
)

const (
	// DefaultGuaranteeThreshold is the default guarantee threshold (t).
	DefaultGuaranteeThreshold = 25
	// DefaultNoiseThreshold is the default noise threshold (k).
	DefaultNoiseThreshold = 25
)

// Options configures fingerprint generation.
type Options struct {
	// GuaranteeThreshold is the minimum shared-region length that is
	// guaranteed to produce a match.
	GuaranteeThreshold int
	// NoiseThreshold is the k-gram length.
	NoiseThreshold int
	// IgnoreComments drops comment tokens before hashing.
	IgnoreComments bool
	// Language is recorded on the fingerprint. Generate fills it from the provider.
	Language ast.Language
}

// DefaultOptions returns the default thresholds (t = k = 25).
func DefaultOptions() Options {
	return Options{
		GuaranteeThreshold: DefaultGuaranteeThreshold,
		NoiseThreshold:     DefaultNoiseThreshold,
	}
}

// Validate checks the thresholds.
func (o Options) Validate() error {
	if o.NoiseThreshold < 1 {
		return fmt.Errorf("%w: noise threshold %d must be at least 1", ErrInvalidThreshold, o.NoiseThreshold)
	}
	if o.GuaranteeThreshold < o.NoiseThreshold {
		return fmt.Errorf("%w: guarantee threshold %d is below noise threshold %d",
			ErrInvalidThreshold, o.GuaranteeThreshold, o.NoiseThreshold)
	}
	return nil
}

// WindowSize returns the winnowing window size t - k + 1.
func (o Options) WindowSize() int {
	return o.GuaranteeThreshold - o.NoiseThreshold + 1
}

// Fingerprint is the winnowed representation of one document.
// It is never mutated after construction; slice accessors return copies.
type Fingerprint struct {
	source    string
	canonical string
	offsets   []Offset
	k         int
	t         int
	hashes    []uint64
	selected  []int
	language  ast.Language
	digest    string

	index    map[uint64]struct{}
	coverage int
}

// Generate tokenizes source with provider and builds its fingerprint.
func Generate(ctx context.Context, provider ast.Provider, source []byte, opts Options) (*Fingerprint, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tokens, err := provider.Tokenize(ctx, source)
	if err != nil {
		return nil, err
	}
	opts.Language = provider.Language()
	return FromTokens(source, tokens, opts)
}

// FromTokens builds a fingerprint from an already tokenized document.
func FromTokens(source []byte, tokens []ast.Token, opts Options) (*Fingerprint, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	canonical, offsets := Normalize(tokens, NormalizeOptions{IgnoreComments: opts.IgnoreComments})

	hashes, err := HashKGrams(canonical, opts.NoiseThreshold)
	if err != nil {
		return nil, err
	}

	selected, err := Winnow(hashes, opts.WindowSize())
	if err != nil {
		return nil, err
	}

	index := make(map[uint64]struct{}, len(hashes))
	for _, h := range hashes {
		index[h] = struct{}{}
	}

	digest := blake3.Sum256(source)

	return &Fingerprint{
		source:    string(source),
		canonical: canonical,
		offsets:   offsets,
		k:         opts.NoiseThreshold,
		t:         opts.GuaranteeThreshold,
		hashes:    hashes,
		selected:  selected,
		language:  opts.Language,
		digest:    hex.EncodeToString(digest[:]),
		index:     index,
		coverage:  Coverage(selected, opts.NoiseThreshold),
	}, nil
}

// Coverage counts the distinct positions touched by the k-grams starting at indices.
func Coverage(indices []int, k int) int {
	bm := roaring.New()
	for _, i := range indices {
		bm.AddRange(uint64(i), uint64(i+k))
	}
	return int(bm.GetCardinality())
}

// Source returns the original document text.
func (f *Fingerprint) Source() string { return f.source }

// Canonical returns the normalized text the hashes were computed over.
func (f *Fingerprint) Canonical() string { return f.canonical }

// Offsets returns a copy of the canonical-to-source offset table.
func (f *Fingerprint) Offsets() []Offset {
	return append([]Offset(nil), f.offsets...)
}

// NoiseThreshold returns k.
func (f *Fingerprint) NoiseThreshold() int { return f.k }

// GuaranteeThreshold returns t.
func (f *Fingerprint) GuaranteeThreshold() int { return f.t }

// WindowSize returns the winnowing window size.
func (f *Fingerprint) WindowSize() int { return f.t - f.k + 1 }

// Hashes returns a copy of the k-gram hash sequence.
func (f *Fingerprint) Hashes() []uint64 {
	return append([]uint64(nil), f.hashes...)
}

// Hash returns the hash of the k-gram starting at i.
func (f *Fingerprint) Hash(i int) uint64 { return f.hashes[i] }

// Selected returns a copy of the winnowed hash indices.
func (f *Fingerprint) Selected() []int {
	return append([]int(nil), f.selected...)
}

// SelectedCoverage returns the number of canonical positions covered by selected k-grams.
func (f *Fingerprint) SelectedCoverage() int { return f.coverage }

// Digest returns the BLAKE3 hex digest of the original bytes.
func (f *Fingerprint) Digest() string { return f.digest }

// Language returns the language the document was tokenized as.
func (f *Fingerprint) Language() ast.Language { return f.language }

// Contains reports whether any k-gram of the document hashes to h.
func (f *Fingerprint) Contains(h uint64) bool {
	_, ok := f.index[h]
	return ok
}
