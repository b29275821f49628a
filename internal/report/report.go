// Package report turns detection results into renderable reports.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/internal/service/detect"
)

// Pair renders a two-document comparison.
type Pair struct {
	Result *detect.PairResult
}

// NewPair wraps a pair result.
func NewPair(res *detect.PairResult) *Pair {
	return &Pair{Result: res}
}

func (p *Pair) RenderData() any {
	return p.Result
}

func (p *Pair) RenderText(w io.Writer, colored bool) error {
	score := output.Percent(p.Result.Score)
	if colored {
		score = output.SimilarityColor(p.Result.Score, score)
	}
	fmt.Fprintf(w, "Score: %s\n\n", score)
	return p.report().RenderText(w, colored)
}

func (p *Pair) RenderMarkdown(w io.Writer) error {
	return p.report().RenderMarkdown(w)
}

func (p *Pair) report() *output.Report {
	r := p.Result
	summary := &output.Section{
		Title: "Summary",
		Content: fmt.Sprintf("Language %s, guarantee threshold %d, noise threshold %d.",
			r.Language, r.GuaranteeThreshold, r.NoiseThreshold),
	}
	if r.Identical {
		summary.Content += "\nThe two files are byte-identical."
	}

	sides := output.NewTable("Documents",
		[]string{"File", "Origin", "Similarity", "Matched", "Selected", "Ranges"},
		[][]string{sideRow(r.A), sideRow(r.B)},
		nil, nil)

	return &output.Report{
		Title:    fmt.Sprintf("%s vs %s", r.A.Path, r.B.Path),
		Sections: []output.Renderable{summary, sides, sideSection(r.A, string(r.Language)), sideSection(r.B, string(r.Language))},
	}
}

func sideRow(s detect.Side) []string {
	return []string{
		s.Path,
		s.Origin,
		output.Percent(s.Similarity),
		strconv.Itoa(s.MatchedCoverage),
		strconv.Itoa(s.SelectedCoverage),
		strconv.Itoa(len(s.Ranges)),
	}
}

// sideSection lists one document's matched regions, with source text when
// snippets were collected.
func sideSection(s detect.Side, lang string) *output.Section {
	sec := &output.Section{Title: fmt.Sprintf("Matches in %s", s.Path)}
	if len(s.Ranges) == 0 {
		sec.Content = "No shared regions."
		return sec
	}
	if len(s.Snippets) == 0 {
		parts := make([]string, len(s.Ranges))
		for i, rg := range s.Ranges {
			parts[i] = fmt.Sprintf("[%d, %d)", rg.Start, rg.End)
		}
		sec.Content = "Byte ranges: " + strings.Join(parts, ", ")
		return sec
	}
	for _, sn := range s.Snippets {
		sec.Sections = append(sec.Sections, output.Section{
			Title: fmt.Sprintf("Lines %d-%d (bytes %d-%d)", sn.StartLine, sn.EndLine, sn.StartByte, sn.EndByte),
			Code:  sn.Text,
			Lang:  lang,
		})
	}
	return sec
}

// Matrix renders an all-pairs comparison.
type Matrix struct {
	Result *detect.MatrixResult
}

// NewMatrix wraps a matrix result.
func NewMatrix(res *detect.MatrixResult) *Matrix {
	return &Matrix{Result: res}
}

func (m *Matrix) RenderData() any {
	return m.Result
}

func (m *Matrix) RenderText(w io.Writer, colored bool) error {
	if colored && len(m.Result.Pairs) > 0 {
		top := m.Result.Pairs[0]
		color.New(color.Bold).Fprintf(w, "Highest score: %s (%s, %s)\n\n",
			output.SimilarityColor(top.Score, output.Percent(top.Score)), top.A, top.B)
	}
	return m.report().RenderText(w, colored)
}

func (m *Matrix) RenderMarkdown(w io.Writer) error {
	return m.report().RenderMarkdown(w)
}

func (m *Matrix) report() *output.Report {
	r := m.Result
	langs := make([]string, len(r.Languages))
	for i, l := range r.Languages {
		langs[i] = string(l)
	}

	summary := &output.Section{
		Title: "Summary",
		Content: fmt.Sprintf("%d files (%s), %d pairs compared, %d at or above %s.\nScores: mean %s, median %s, p95 %s, max %s.",
			r.Files, strings.Join(langs, ", "), r.Compared, len(r.Pairs), output.Percent(r.MinSimilarity),
			output.Percent(r.Stats.Mean), output.Percent(r.Stats.Median), output.Percent(r.Stats.P95), output.Percent(r.Stats.Max)),
	}
	sections := []output.Renderable{summary}

	rows := make([][]string, len(r.Pairs))
	for i, p := range r.Pairs {
		identical := ""
		if p.Identical {
			identical = "yes"
		}
		rows[i] = []string{
			p.A, p.B, string(p.Language),
			output.Percent(p.SimilarityA), output.Percent(p.SimilarityB), output.Percent(p.Score),
			identical,
		}
	}
	sections = append(sections, output.NewTable("Similar Pairs",
		[]string{"File A", "File B", "Language", "Sim A", "Sim B", "Score", "Identical"},
		rows, nil, nil))

	if len(r.Clusters) > 0 {
		rows := make([][]string, len(r.Clusters))
		for i, c := range r.Clusters {
			rows[i] = []string{strconv.Itoa(i + 1), strconv.Itoa(len(c.Files)), strings.Join(c.Files, ", ")}
		}
		sections = append(sections, output.NewTable("Clusters", []string{"Cluster", "Size", "Files"}, rows, nil, nil))
	}

	if len(r.Skipped) > 0 {
		rows := make([][]string, len(r.Skipped))
		for i, s := range r.Skipped {
			rows[i] = []string{s.Path, s.Reason}
		}
		sections = append(sections, output.NewTable("Skipped", []string{"File", "Reason"}, rows, nil, nil))
	}

	return &output.Report{
		Title:    "Similarity Matrix",
		Sections: sections,
	}
}
