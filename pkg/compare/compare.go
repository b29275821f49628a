// Package compare finds the regions two fingerprinted documents share and
// scores how much of each document they cover.
package compare

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/panbanda/winnow/pkg/fingerprint"
)

// ErrThresholdMismatch is returned when two fingerprints were built with
// different noise thresholds.
var ErrThresholdMismatch = errors.New("noise threshold mismatch")

// ThresholdMismatchError carries the noise thresholds of both documents.
type ThresholdMismatchError struct {
	A, B int
}

func (e *ThresholdMismatchError) Error() string {
	return fmt.Sprintf("%s: %d vs %d", ErrThresholdMismatch, e.A, e.B)
}

// Is matches ErrThresholdMismatch.
func (e *ThresholdMismatchError) Is(target error) bool {
	return target == ErrThresholdMismatch
}

// Span is a half-open range [Start, End) in canonical-text coordinates.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length.
func (s Span) Len() int { return s.End - s.Start }

// Range is a half-open byte range [Start, End) in the original source.
type Range struct {
	Start int `json:"start_byte"`
	End   int `json:"end_byte"`
}

// DocumentMatches is one side of a comparison.
type DocumentMatches struct {
	// Matched are the document's selected indices whose hash occurs anywhere in the other document.
	Matched          []int   `json:"-"`
	Spans            []Span  `json:"spans"`
	Ranges           []Range `json:"ranges"`
	MatchedCoverage  int     `json:"matched_coverage"`
	SelectedCoverage int     `json:"selected_coverage"`
	Similarity       float64 `json:"similarity"`
}

// Result holds both sides of a comparison.
type Result struct {
	A DocumentMatches `json:"a"`
	B DocumentMatches `json:"b"`
}

// Score returns the larger of the two similarities.
func (r *Result) Score() float64 {
	return max(r.A.Similarity, r.B.Similarity)
}

// Compare reports the regions of a found in b and of b found in a.
// Each side's selected hashes are tested against every hash of the other side.
func Compare(a, b *fingerprint.Fingerprint) (*Result, error) {
	if a.NoiseThreshold() != b.NoiseThreshold() {
		return nil, &ThresholdMismatchError{A: a.NoiseThreshold(), B: b.NoiseThreshold()}
	}
	if a.SelectedCoverage() == 0 {
		return nil, fmt.Errorf("%w: document A has no selected k-grams (canonical length %d, guarantee threshold %d)",
			fingerprint.ErrDegenerateInput, len(a.Canonical()), a.GuaranteeThreshold())
	}
	if b.SelectedCoverage() == 0 {
		return nil, fmt.Errorf("%w: document B has no selected k-grams (canonical length %d, guarantee threshold %d)",
			fingerprint.ErrDegenerateInput, len(b.Canonical()), b.GuaranteeThreshold())
	}

	return &Result{
		A: matchDocument(a, b),
		B: matchDocument(b, a),
	}, nil
}

func matchDocument(src, target *fingerprint.Fingerprint) DocumentMatches {
	k := src.NoiseThreshold()

	var matched []int
	for _, i := range src.Selected() {
		if target.Contains(src.Hash(i)) {
			matched = append(matched, i)
		}
	}

	spans := MergeSpans(matched, k)
	offsets := src.Offsets()
	ranges := make([]Range, 0, len(spans))
	covered := 0
	for _, s := range spans {
		r := Range{Start: TranslateOffset(offsets, s.Start), End: TranslateOffset(offsets, s.End)}
		if r.End < r.Start || s.End < s.Start {
			panic(fmt.Sprintf("compare: negative span %v -> %v", s, r))
		}
		ranges = append(ranges, r)
		covered += s.Len()
	}

	selected := src.SelectedCoverage()
	return DocumentMatches{
		Matched:          matched,
		Spans:            spans,
		Ranges:           ranges,
		MatchedCoverage:  covered,
		SelectedCoverage: selected,
		Similarity:       float64(covered) / float64(selected),
	}
}

// MergeSpans clusters k-gram start indices whose k-grams overlap, that is
// consecutive indices at most k-1 apart, and returns one span
// [first, last+k) per cluster.
func MergeSpans(indices []int, k int) []Span {
	if len(indices) == 0 {
		return nil
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)

	var spans []Span
	first, last := sorted[0], sorted[0]
	for _, idx := range sorted[1:] {
		if idx-last > k-1 {
			spans = append(spans, Span{Start: first, End: last + k})
			first = idx
		}
		last = idx
	}
	return append(spans, Span{Start: first, End: last + k})
}

// TranslateOffset maps a canonical position to an original byte offset using
// the first offset entry at or after pos, clamped to the last entry.
func TranslateOffset(offsets []fingerprint.Offset, pos int) int {
	if len(offsets) == 0 {
		return 0
	}
	i := sort.Search(len(offsets), func(i int) bool {
		return offsets[i].Canonical >= pos
	})
	if i >= len(offsets) {
		i = len(offsets) - 1
	}
	return offsets[i].Source
}
