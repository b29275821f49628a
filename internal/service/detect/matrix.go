package detect

import (
	"cmp"
	"context"
	"slices"

	"github.com/panbanda/winnow/internal/fileproc"
	"github.com/panbanda/winnow/internal/progress"
	"github.com/panbanda/winnow/pkg/ast"
	"github.com/panbanda/winnow/pkg/compare"
	"github.com/panbanda/winnow/pkg/fingerprint"
	"github.com/panbanda/winnow/pkg/parser"
	"github.com/panbanda/winnow/pkg/source"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/stat"
)

// MatrixOptions configures Matrix.
type MatrixOptions struct {
	// Language restricts the run to one language; empty compares every
	// detected language within its own group.
	Language      string
	Fingerprint   fingerprint.Options
	MinSimilarity float64
	// Top caps the number of reported pairs (0 = unlimited).
	Top int
}

// MatrixPair is one reported pair of a matrix run.
type MatrixPair struct {
	A           string          `json:"a"`
	B           string          `json:"b"`
	Language    ast.Language    `json:"language"`
	SimilarityA float64         `json:"similarity_a"`
	SimilarityB float64         `json:"similarity_b"`
	Score       float64         `json:"score"`
	Identical   bool            `json:"identical"`
	RangesA     []compare.Range `json:"ranges_a"`
	RangesB     []compare.Range `json:"ranges_b"`
}

// Cluster is a set of files connected by reported pairs.
type Cluster struct {
	Files []string `json:"files"`
}

// SkippedFile is a file left out of the comparison.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Stats summarizes the scores of every compared pair.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// MatrixResult is the outcome of an all-pairs comparison.
type MatrixResult struct {
	Files              int            `json:"files"`
	Languages          []ast.Language `json:"languages"`
	GuaranteeThreshold int            `json:"guarantee_threshold"`
	NoiseThreshold     int            `json:"noise_threshold"`
	Compared           int            `json:"compared"`
	MinSimilarity      float64        `json:"min_similarity"`
	Stats              Stats          `json:"stats"`
	Pairs              []MatrixPair   `json:"pairs"`
	Clusters           []Cluster      `json:"clusters"`
	Skipped            []SkippedFile  `json:"skipped,omitempty"`
}

type pairJob struct {
	a, b *Document
}

// Matrix compares every pair of same-language files read from src.
// Files that cannot be read or fingerprinted are logged and skipped.
func (s *Service) Matrix(ctx context.Context, files []string, src source.ContentSource, opts MatrixOptions) (*MatrixResult, error) {
	if err := opts.Fingerprint.Validate(); err != nil {
		return nil, err
	}

	result := &MatrixResult{
		Languages:          []ast.Language{},
		GuaranteeThreshold: opts.Fingerprint.GuaranteeThreshold,
		NoiseThreshold:     opts.Fingerprint.NoiseThreshold,
		MinSimilarity:      opts.MinSimilarity,
		Pairs:              []MatrixPair{},
		Clusters:           []Cluster{},
	}

	providers, err := s.assignProviders(files, opts.Language, result)
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(providers))
	for _, f := range files {
		if _, ok := providers[f]; ok {
			targets = append(targets, f)
		}
	}
	result.Files = len(targets)

	// One bar covers both phases: it is relabelled and restarted for comparing.
	tracker := s.tracker("Fingerprinting", len(targets))
	docs := s.fingerprintAll(ctx, targets, src, providers, opts.Fingerprint, result, tracker)
	if err := ctx.Err(); err != nil {
		tracker.FinishError(err)
		return nil, err
	}

	jobs := pairJobs(docs)
	for lang := range groupLanguages(docs) {
		result.Languages = append(result.Languages, lang)
	}
	slices.Sort(result.Languages)

	tracker.Describe("Comparing")
	if len(jobs) == 0 {
		tracker.FinishSkipped("no same-language pairs")
	} else {
		tracker.Reset(len(jobs))
	}
	pairs := s.compareAll(ctx, jobs, tracker)
	if err := ctx.Err(); err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	if len(jobs) > 0 {
		tracker.FinishSuccess()
	}
	result.Compared = len(pairs)
	result.Stats = scoreStats(pairs)

	for _, p := range pairs {
		if p.Score >= opts.MinSimilarity {
			result.Pairs = append(result.Pairs, p)
		}
	}
	slices.SortFunc(result.Pairs, func(x, y MatrixPair) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	result.Clusters = clusters(result.Pairs)
	if opts.Top > 0 && len(result.Pairs) > opts.Top {
		result.Pairs = result.Pairs[:opts.Top]
	}

	s.logger.Debug("matrix complete",
		"files", result.Files,
		"fingerprinted", len(docs),
		"compared", result.Compared,
		"reported", len(result.Pairs),
		"skipped", len(result.Skipped))
	return result, nil
}

// assignProviders maps each comparable file to its provider.
func (s *Service) assignProviders(files []string, language string, result *MatrixResult) (map[string]ast.Provider, error) {
	providers := make(map[string]ast.Provider, len(files))

	if language != "" {
		provider, err := s.registry.Lookup(language)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if ast.Language(parser.DetectLanguage(f)) == provider.Language() {
				providers[f] = provider
			}
		}
		return providers, nil
	}

	for _, f := range files {
		lang := parser.DetectLanguage(f)
		if lang == parser.LangUnknown {
			continue
		}
		provider, err := s.registry.Lookup(string(lang))
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: f, Reason: err.Error()})
			continue
		}
		providers[f] = provider
	}
	return providers, nil
}

func (s *Service) fingerprintAll(
	ctx context.Context,
	files []string,
	src source.ContentSource,
	providers map[string]ast.Provider,
	opts fingerprint.Options,
	result *MatrixResult,
	tracker *progress.Tracker,
) []*Document {
	docs, errs := fileproc.MapSourceFiles(ctx, files, src, s.workers,
		func(ctx context.Context, path string, content []byte) (*Document, error) {
			return s.fingerprintContent(ctx, providers[path], path, src.Name(), content, opts)
		}, tracker.Tick)

	if errs.HasErrors() {
		for _, pe := range errs.Errors {
			reason := pe.Err.Error()
			if isDegenerate(pe.Err) {
				reason = "too short to fingerprint"
			} else {
				s.logger.Warn("skipping file", "path", pe.Path, "error", pe.Err)
			}
			result.Skipped = append(result.Skipped, SkippedFile{Path: pe.Path, Reason: reason})
		}
	}

	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		if d.Fingerprint.SelectedCoverage() == 0 {
			result.Skipped = append(result.Skipped, SkippedFile{Path: d.Path, Reason: "no complete winnowing window"})
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(result.Skipped, func(x, y SkippedFile) int {
		return cmp.Compare(x.Path, y.Path)
	})
	return out
}

func (s *Service) compareAll(ctx context.Context, jobs []pairJob, tracker *progress.Tracker) []MatrixPair {
	results, errs := fileproc.Map(ctx, jobs, s.workers, func(_ context.Context, j pairJob) (MatrixPair, error) {
		return comparePair(j.a, j.b)
	}, tracker.Tick)

	pairs := make([]MatrixPair, 0, len(results))
	for i, r := range results {
		if errs[i] != nil {
			s.logger.Warn("skipping pair", "a", jobs[i].a.Path, "b", jobs[i].b.Path, "error", errs[i])
			continue
		}
		pairs = append(pairs, r)
	}
	return pairs
}

func comparePair(a, b *Document) (MatrixPair, error) {
	res, err := compare.Compare(a.Fingerprint, b.Fingerprint)
	if err != nil {
		return MatrixPair{}, err
	}
	return MatrixPair{
		A:           a.Path,
		B:           b.Path,
		Language:    a.Fingerprint.Language(),
		SimilarityA: res.A.Similarity,
		SimilarityB: res.B.Similarity,
		Score:       res.Score(),
		Identical:   a.Fingerprint.Digest() == b.Fingerprint.Digest(),
		RangesA:     res.A.Ranges,
		RangesB:     res.B.Ranges,
	}, nil
}

func (s *Service) tracker(label string, total int) *progress.Tracker {
	if s.progress == nil || total == 0 {
		return nil
	}
	return progress.NewTrackerTo(s.progress, label, total)
}

func groupLanguages(docs []*Document) map[ast.Language][]*Document {
	groups := make(map[ast.Language][]*Document)
	for _, d := range docs {
		lang := d.Fingerprint.Language()
		groups[lang] = append(groups[lang], d)
	}
	return groups
}

// pairJobs lists every unordered same-language pair in path order.
func pairJobs(docs []*Document) []pairJob {
	groups := groupLanguages(docs)
	langs := make([]ast.Language, 0, len(groups))
	for lang := range groups {
		langs = append(langs, lang)
	}
	slices.Sort(langs)

	var jobs []pairJob
	for _, lang := range langs {
		group := groups[lang]
		slices.SortFunc(group, func(x, y *Document) int { return cmp.Compare(x.Path, y.Path) })
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				jobs = append(jobs, pairJob{a: group[i], b: group[j]})
			}
		}
	}
	return jobs
}

func scoreStats(pairs []MatrixPair) Stats {
	if len(pairs) == 0 {
		return Stats{}
	}
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		scores[i] = p.Score
	}
	slices.Sort(scores)
	return Stats{
		Mean:   stat.Mean(scores, nil),
		Median: stat.Quantile(0.5, stat.Empirical, scores, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, scores, nil),
		Max:    scores[len(scores)-1],
	}
}

// clusters groups files connected by pairs into connected components,
// largest first.
func clusters(pairs []MatrixPair) []Cluster {
	ids := make(map[string]int64)
	var paths []string
	id := func(path string) int64 {
		if n, ok := ids[path]; ok {
			return n
		}
		n := int64(len(paths))
		ids[path] = n
		paths = append(paths, path)
		return n
	}

	g := simple.NewUndirectedGraph()
	for _, p := range pairs {
		a, b := id(p.A), id(p.B)
		if g.Node(a) == nil {
			g.AddNode(simple.Node(a))
		}
		if g.Node(b) == nil {
			g.AddNode(simple.Node(b))
		}
		g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
	}

	out := []Cluster{}
	for _, component := range topo.ConnectedComponents(g) {
		files := make([]string, 0, len(component))
		for _, n := range component {
			files = append(files, paths[n.ID()])
		}
		slices.Sort(files)
		out = append(out, Cluster{Files: files})
	}
	slices.SortFunc(out, func(x, y Cluster) int {
		if c := cmp.Compare(len(y.Files), len(x.Files)); c != 0 {
			return c
		}
		return cmp.Compare(x.Files[0], y.Files[0])
	})
	return out
}
