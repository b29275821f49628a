package detect

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/pkg/ast"
	"github.com/panbanda/winnow/pkg/compare"
	"github.com/panbanda/winnow/pkg/fingerprint"
	"github.com/panbanda/winnow/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pyFunc = `def total(values):
    result = 0
    for v in values:
        if v > 0:
            result = result + v
    return result
`

const pyRenamed = `def sum_all(items):
    acc = 0
    for it in items:
        if it > 0:
            acc = acc + it
    return acc
`

const pyClass = `class Counter:
    def __init__(self):
        self.count = 0

    def bump(self, n):
        self.count = self.count + n
        return self.count
`

const jsOriginal = `function computeTotal(items) {
  let sum = 0;
  for (const item of items) {
    if (item.price > 0) {
      sum += item.price * item.qty;
    }
  }
  return sum;
}
`

const jsRenamed = `function addUp(xs) {
  let acc = 0;
  for (const x of xs) {
    if (x.price > 0) {
      acc += x.price * x.qty;
    }
  }
  return acc;
}
`

var smallOpts = fingerprint.Options{GuaranteeThreshold: 12, NoiseThreshold: 6}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestComparePair_Renamed(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "b.py": pyRenamed})
	src := source.NewFilesystem(dir)
	svc := New()

	res, err := svc.ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "b.py", Source: src},
		PairOptions{Fingerprint: smallOpts, Snippets: true})
	require.NoError(t, err)

	assert.Equal(t, ast.Language("python"), res.Language)
	assert.Equal(t, 12, res.GuaranteeThreshold)
	assert.Equal(t, 6, res.NoiseThreshold)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.InDelta(t, 1.0, res.A.Similarity, 1e-9)
	assert.InDelta(t, 1.0, res.B.Similarity, 1e-9)
	assert.False(t, res.Identical)
	assert.NotEqual(t, res.A.Digest, res.B.Digest)
	assert.Equal(t, "filesystem", res.A.Origin)

	require.NotEmpty(t, res.A.Ranges)
	require.Len(t, res.A.Snippets, len(res.A.Ranges))
	assert.Equal(t, 1, res.A.Snippets[0].StartLine)
	assert.Contains(t, res.A.Snippets[0].Text, "def")
}

func TestComparePair_NoSnippets(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "b.py": pyFunc})
	src := source.NewFilesystem(dir)

	res, err := New().ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "b.py", Source: src},
		PairOptions{Fingerprint: smallOpts})
	require.NoError(t, err)
	assert.True(t, res.Identical)
	assert.Empty(t, res.A.Snippets)
	assert.Empty(t, res.B.Snippets)
}

func TestComparePair_Language(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": pyFunc, "b.txt": pyRenamed})
	src := source.NewFilesystem(dir)
	svc := New()
	a := Input{Path: "a.txt", Source: src}
	b := Input{Path: "b.txt", Source: src}

	_, err := svc.ComparePair(context.Background(), a, b, PairOptions{Fingerprint: smallOpts})
	require.ErrorIs(t, err, ast.ErrUnsupportedLanguage)

	_, err = svc.ComparePair(context.Background(), a, b, PairOptions{Language: "cobol", Fingerprint: smallOpts})
	require.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "cobol")

	res, err := svc.ComparePair(context.Background(), a, b, PairOptions{Language: "py", Fingerprint: smallOpts})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestComparePair_Errors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "tiny.py": "x = 1\n"})
	src := source.NewFilesystem(dir)
	svc := New()

	_, err := svc.ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "missing.py", Source: src},
		PairOptions{Fingerprint: smallOpts})
	require.ErrorIs(t, err, source.ErrIO)

	_, err = svc.ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "tiny.py", Source: src},
		PairOptions{Fingerprint: smallOpts})
	require.ErrorIs(t, err, fingerprint.ErrDegenerateInput)
	assert.Contains(t, err.Error(), "tiny.py")

	_, err = svc.ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "a.py", Source: src},
		PairOptions{Fingerprint: fingerprint.Options{GuaranteeThreshold: 3, NoiseThreshold: 6}})
	require.ErrorIs(t, err, fingerprint.ErrInvalidThreshold)
}

func TestComparePair_DebugLogging(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "b.py": pyRenamed})
	src := source.NewFilesystem(dir)

	var buf bytes.Buffer
	svc := New(WithLogger(logging.NewLogger("debug", &buf)))
	_, err := svc.ComparePair(context.Background(),
		Input{Path: "a.py", Source: src},
		Input{Path: "b.py", Source: src},
		PairOptions{Fingerprint: smallOpts})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "fingerprinted")
	assert.Contains(t, out, "canonical_len=")
	assert.Contains(t, out, "selected=")
}

func matrixFixture(t *testing.T) []string {
	t.Helper()
	dir := writeFiles(t, map[string]string{
		"a.py":      pyFunc,
		"b.py":      pyRenamed,
		"c.py":      pyClass,
		"d.js":      jsOriginal,
		"e.js":      jsRenamed,
		"tiny.py":   "x = 1\n",
		"notes.txt": "not code",
	})
	var files []string
	for _, name := range []string{"a.py", "b.py", "c.py", "d.js", "e.js", "tiny.py", "notes.txt"} {
		files = append(files, filepath.Join(dir, name))
	}
	return files
}

func TestMatrix(t *testing.T) {
	files := matrixFixture(t)
	svc := New(WithWorkers(2), WithProgress(io.Discard))

	res, err := svc.Matrix(context.Background(), files, source.NewFilesystem(""), MatrixOptions{
		Fingerprint:   smallOpts,
		MinSimilarity: 0.95,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, res.Files)
	assert.Equal(t, []ast.Language{"javascript", "python"}, res.Languages)
	assert.Equal(t, 4, res.Compared)
	assert.InDelta(t, 1.0, res.Stats.Max, 1e-9)
	assert.LessOrEqual(t, res.Stats.Mean, res.Stats.Max)

	require.Len(t, res.Pairs, 2)
	assert.Equal(t, files[0], res.Pairs[0].A)
	assert.Equal(t, files[1], res.Pairs[0].B)
	assert.Equal(t, files[3], res.Pairs[1].A)
	assert.Equal(t, files[4], res.Pairs[1].B)
	for _, p := range res.Pairs {
		assert.InDelta(t, 1.0, p.Score, 1e-9)
		assert.False(t, p.Identical)
		assert.NotEmpty(t, p.RangesA)
	}

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, files[5], res.Skipped[0].Path)
	assert.Equal(t, "too short to fingerprint", res.Skipped[0].Reason)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []string{files[0], files[1]}, res.Clusters[0].Files)
	assert.Equal(t, []string{files[3], files[4]}, res.Clusters[1].Files)
}

func TestMatrix_TopAndLanguage(t *testing.T) {
	files := matrixFixture(t)
	svc := New()

	res, err := svc.Matrix(context.Background(), files, source.NewFilesystem(""), MatrixOptions{
		Fingerprint:   smallOpts,
		MinSimilarity: 0.95,
		Top:           1,
	})
	require.NoError(t, err)
	assert.Len(t, res.Pairs, 1)
	assert.Len(t, res.Clusters, 2, "clusters cover every pair above the threshold")

	res, err = svc.Matrix(context.Background(), files, source.NewFilesystem(""), MatrixOptions{
		Language:    "js",
		Fingerprint: smallOpts,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 1, res.Compared)
	assert.Equal(t, []ast.Language{"javascript"}, res.Languages)
}

func TestMatrix_Identical(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "copy.py": pyFunc})
	res, err := New().Matrix(context.Background(), []string{"a.py", "copy.py"}, source.NewFilesystem(dir), MatrixOptions{
		Fingerprint: smallOpts,
	})
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.True(t, res.Pairs[0].Identical)
}

func TestMatrix_UnreadableFileIsSkipped(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.py": pyFunc, "b.py": pyRenamed})
	var buf bytes.Buffer
	svc := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	res, err := svc.Matrix(context.Background(), []string{"a.py", "b.py", "gone.py"}, source.NewFilesystem(dir), MatrixOptions{
		Fingerprint: smallOpts,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Compared)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "gone.py", res.Skipped[0].Path)
	assert.Contains(t, buf.String(), "skipping file")
}

func TestMatrix_Cache(t *testing.T) {
	files := matrixFixture(t)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 0, true)
	require.NoError(t, err)
	svc := New(WithCache(c))

	opts := MatrixOptions{Fingerprint: smallOpts, MinSimilarity: 0.95}
	cold, err := svc.Matrix(context.Background(), files, source.NewFilesystem(""), opts)
	require.NoError(t, err)

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Entries, "every tokenized file is cached, degenerate ones included")

	warm, err := svc.Matrix(context.Background(), files, source.NewFilesystem(""), opts)
	require.NoError(t, err)
	assert.Equal(t, cold.Pairs, warm.Pairs)
	assert.Equal(t, cold.Skipped, warm.Skipped)
}

func TestMatrix_InvalidOptions(t *testing.T) {
	_, err := New().Matrix(context.Background(), nil, source.NewFilesystem(""), MatrixOptions{
		Fingerprint: fingerprint.Options{GuaranteeThreshold: 1, NoiseThreshold: 2},
	})
	require.ErrorIs(t, err, fingerprint.ErrInvalidThreshold)
}

func TestMatrix_Cancelled(t *testing.T) {
	files := matrixFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Matrix(ctx, files, source.NewFilesystem(""), MatrixOptions{Fingerprint: smallOpts})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSnippets(t *testing.T) {
	src := "a\nbc\nd\n"
	got := Snippets(src, []compare.Range{{Start: 2, End: 5}, {Start: 0, End: 7}, {Start: 6, End: 99}})
	require.Len(t, got, 3)

	assert.Equal(t, Snippet{StartByte: 2, EndByte: 5, StartLine: 2, EndLine: 2, Text: "bc\n"}, got[0])
	assert.Equal(t, 1, got[1].StartLine)
	assert.Equal(t, 3, got[1].EndLine)
	assert.Equal(t, 7, got[2].EndByte)
	assert.Equal(t, "\n", got[2].Text)
}

func TestClusters(t *testing.T) {
	got := clusters([]MatrixPair{
		{A: "d", B: "e"},
		{A: "a", B: "b"},
		{A: "b", B: "c"},
	})
	assert.Equal(t, []Cluster{
		{Files: []string{"a", "b", "c"}},
		{Files: []string{"d", "e"}},
	}, got)
	assert.Empty(t, clusters(nil))
}

func TestScoreStats(t *testing.T) {
	assert.Equal(t, Stats{}, scoreStats(nil))

	s := scoreStats([]MatrixPair{{Score: 0.2}, {Score: 1.0}, {Score: 0.6}})
	assert.InDelta(t, 0.6, s.Mean, 1e-9)
	assert.InDelta(t, 0.6, s.Median, 1e-9)
	assert.InDelta(t, 1.0, s.P95, 1e-9)
	assert.InDelta(t, 1.0, s.Max, 1e-9)
}

func TestMatrix_ProgressSkipsCompareWithoutPairs(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.py": pyFunc,
		"d.js": jsOriginal,
	})
	files := []string{filepath.Join(dir, "a.py"), filepath.Join(dir, "d.js")}

	var buf bytes.Buffer
	svc := New(WithWorkers(1), WithProgress(&buf))
	res, err := svc.Matrix(context.Background(), files, source.NewFilesystem(""), MatrixOptions{Fingerprint: smallOpts})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Compared)
	assert.Empty(t, res.Pairs)
	assert.Contains(t, buf.String(), "Comparing skipped (no same-language pairs)")
}

func TestMatrix_ProgressCancelled(t *testing.T) {
	files := matrixFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	svc := New(WithWorkers(1), WithProgress(&buf))
	_, err := svc.Matrix(ctx, files, source.NewFilesystem(""), MatrixOptions{Fingerprint: smallOpts})
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, buf.String(), "Fingerprinting error: context canceled")
}
