// Package detect orchestrates fingerprinting and comparison of source files.
package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/pkg/ast"
	"github.com/panbanda/winnow/pkg/ast/treesitter"
	"github.com/panbanda/winnow/pkg/compare"
	"github.com/panbanda/winnow/pkg/fingerprint"
	"github.com/panbanda/winnow/pkg/parser"
	"github.com/panbanda/winnow/pkg/source"
)

// Service compares documents using a registry of grammar providers.
type Service struct {
	logger   *slog.Logger
	registry *ast.Registry
	workers  int
	progress io.Writer
	cache    *cache.Cache
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRegistry sets the grammar provider registry.
func WithRegistry(reg *ast.Registry) Option {
	return func(s *Service) {
		s.registry = reg
	}
}

// WithWorkers bounds matrix parallelism (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithProgress renders matrix progress bars to w.
func WithProgress(w io.Writer) Option {
	return func(s *Service) {
		s.progress = w
	}
}

// WithCache reuses token streams of unchanged files across runs.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New creates a detection service.
func New(opts ...Option) *Service {
	s := &Service{
		logger:   logging.Discard(),
		registry: treesitter.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the provider registry in use.
func (s *Service) Registry() *ast.Registry {
	return s.registry
}

// Input names one document and where to read it from.
type Input struct {
	Path   string
	Source source.ContentSource
}

// Document is a fingerprinted input.
type Document struct {
	Path        string
	Origin      string
	Fingerprint *fingerprint.Fingerprint
}

// Provider resolves a language name, or detects one from path when name is empty.
func (s *Service) Provider(name, path string) (ast.Provider, error) {
	if name == "" {
		lang := parser.DetectLanguage(path)
		if lang == parser.LangUnknown {
			return nil, fmt.Errorf("%w: cannot detect language of %s", ast.ErrUnsupportedLanguage, path)
		}
		name = string(lang)
	}
	return s.registry.Lookup(name)
}

// Fingerprint reads and fingerprints one input.
func (s *Service) Fingerprint(ctx context.Context, provider ast.Provider, in Input, opts fingerprint.Options) (*Document, error) {
	content, err := in.Source.Read(in.Path)
	if err != nil {
		return nil, err
	}
	return s.fingerprintContent(ctx, provider, in.Path, in.Source.Name(), content, opts)
}

func (s *Service) fingerprintContent(ctx context.Context, provider ast.Provider, path, origin string, content []byte, opts fingerprint.Options) (*Document, error) {
	fp, err := fingerprint.Generate(ctx, cache.Wrap(provider, s.cache, s.logger), content, opts)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	s.logger.Debug("fingerprinted",
		"path", path,
		"source", origin,
		"language", fp.Language(),
		"canonical_len", len(fp.Canonical()),
		"hashes", len(fp.Hashes()),
		"selected", len(fp.Selected()))
	return &Document{Path: path, Origin: origin, Fingerprint: fp}, nil
}

// PairOptions configures ComparePair.
type PairOptions struct {
	// Language overrides detection from the first path.
	Language    string
	Fingerprint fingerprint.Options
	Snippets    bool
}

// Side is one document's view of a pair comparison.
type Side struct {
	Path             string          `json:"path"`
	Origin           string          `json:"origin"`
	Digest           string          `json:"digest"`
	Similarity       float64         `json:"similarity"`
	MatchedCoverage  int             `json:"matched_coverage"`
	SelectedCoverage int             `json:"selected_coverage"`
	Ranges           []compare.Range `json:"ranges"`
	Snippets         []Snippet       `json:"snippets,omitempty"`
}

// Snippet is the source text of one matched range.
type Snippet struct {
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// PairResult is the outcome of comparing two documents.
type PairResult struct {
	Language           ast.Language `json:"language"`
	GuaranteeThreshold int          `json:"guarantee_threshold"`
	NoiseThreshold     int          `json:"noise_threshold"`
	Score              float64      `json:"score"`
	Identical          bool         `json:"identical"`
	A                  Side         `json:"a"`
	B                  Side         `json:"b"`
}

// ComparePair fingerprints a and b with the same provider and compares them.
func (s *Service) ComparePair(ctx context.Context, a, b Input, opts PairOptions) (*PairResult, error) {
	provider, err := s.Provider(opts.Language, a.Path)
	if err != nil {
		return nil, err
	}

	docA, err := s.Fingerprint(ctx, provider, a, opts.Fingerprint)
	if err != nil {
		return nil, err
	}
	docB, err := s.Fingerprint(ctx, provider, b, opts.Fingerprint)
	if err != nil {
		return nil, err
	}

	res, err := compare.Compare(docA.Fingerprint, docB.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("compare %s and %s: %w", a.Path, b.Path, err)
	}
	s.logger.Debug("compared",
		"a", a.Path, "b", b.Path,
		"matched_a", len(res.A.Matched), "matched_b", len(res.B.Matched),
		"score", res.Score())

	fpA := docA.Fingerprint
	return &PairResult{
		Language:           fpA.Language(),
		GuaranteeThreshold: fpA.GuaranteeThreshold(),
		NoiseThreshold:     fpA.NoiseThreshold(),
		Score:              res.Score(),
		Identical:          fpA.Digest() == docB.Fingerprint.Digest(),
		A:                  newSide(docA, res.A, opts.Snippets),
		B:                  newSide(docB, res.B, opts.Snippets),
	}, nil
}

func newSide(doc *Document, m compare.DocumentMatches, snippets bool) Side {
	fp := doc.Fingerprint
	side := Side{
		Path:             doc.Path,
		Origin:           doc.Origin,
		Digest:           fp.Digest(),
		Similarity:       m.Similarity,
		MatchedCoverage:  m.MatchedCoverage,
		SelectedCoverage: m.SelectedCoverage,
		Ranges:           m.Ranges,
	}
	if side.Ranges == nil {
		side.Ranges = []compare.Range{}
	}
	if snippets {
		side.Snippets = Snippets(fp.Source(), m.Ranges)
	}
	return side
}

// Snippets extracts the text and 1-based line span of each range.
func Snippets(src string, ranges []compare.Range) []Snippet {
	out := make([]Snippet, 0, len(ranges))
	for _, r := range ranges {
		start := min(max(r.Start, 0), len(src))
		end := min(max(r.End, start), len(src))
		text := src[start:end]
		startLine := strings.Count(src[:start], "\n") + 1
		out = append(out, Snippet{
			StartByte: start,
			EndByte:   end,
			StartLine: startLine,
			EndLine:   startLine + strings.Count(strings.TrimSuffix(text, "\n"), "\n"),
			Text:      text,
		})
	}
	return out
}

// isDegenerate reports whether err means a document was too short to compare.
func isDegenerate(err error) bool {
	return errors.Is(err, fingerprint.ErrDegenerateInput)
}
