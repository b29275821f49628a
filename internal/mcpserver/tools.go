package mcpserver

import (
	"bytes"
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/internal/report"
	"github.com/panbanda/winnow/internal/service/detect"
	scannerSvc "github.com/panbanda/winnow/internal/service/scanner"
	"github.com/panbanda/winnow/pkg/fingerprint"
	"github.com/panbanda/winnow/pkg/source"
)

// ThresholdInput carries the fingerprint settings shared by the comparison tools.
type ThresholdInput struct {
	Language           string `json:"language,omitempty" jsonschema:"Language name or alias (python, js, go...). Detected from the file extension if empty."`
	GuaranteeThreshold int    `json:"guarantee_threshold,omitempty" jsonschema:"Matches at least this many normalized characters long are always found. Defaults to the configured value (25)."`
	NoiseThreshold     int    `json:"noise_threshold,omitempty" jsonschema:"Matches shorter than this many normalized characters are ignored. Defaults to the configured value (25)."`
	IgnoreComments     bool   `json:"ignore_comments,omitempty" jsonschema:"Drop comments before fingerprinting."`
	Format             string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

// CompareFilesInput is the input of compare_files.
type CompareFilesInput struct {
	ThresholdInput
	FileA    string `json:"file_a" jsonschema:"First file to compare."`
	FileB    string `json:"file_b" jsonschema:"Second file to compare."`
	Snippets bool   `json:"snippets,omitempty" jsonschema:"Include the source text of every matched region."`
}

// CompareDirectoryInput is the input of compare_directory.
type CompareDirectoryInput struct {
	ThresholdInput
	Paths         []string `json:"paths,omitempty" jsonschema:"Files or directories to compare. Defaults to current directory if empty."`
	MinSimilarity float64  `json:"min_similarity,omitempty" jsonschema:"Only report pairs scoring at least this (0.0-1.0). Defaults to the configured value (0.5)."`
	Top           int      `json:"top,omitempty" jsonschema:"Report at most this many pairs. Defaults to the configured value (20)."`
}

// ListLanguagesInput is the (empty) input of list_languages.
type ListLanguagesInput struct{}

// LanguageInfo describes one supported language.
type LanguageInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

func getPaths(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

func getFormat(format string) output.Format {
	switch strings.ToLower(format) {
	case "json", "yaml", "yml", "markdown", "md":
		return output.ParseFormat(format)
	default:
		return output.FormatTOON
	}
}

// fingerprintOptions layers tool input over the configured defaults.
func (s *Server) fingerprintOptions(in ThresholdInput) fingerprint.Options {
	opts := s.config.FingerprintOptions()
	if in.GuaranteeThreshold > 0 {
		opts.GuaranteeThreshold = in.GuaranteeThreshold
	}
	if in.NoiseThreshold > 0 {
		opts.NoiseThreshold = in.NoiseThreshold
	}
	if in.IgnoreComments {
		opts.IgnoreComments = true
	}
	return opts
}

func (s *Server) language(in ThresholdInput) string {
	if in.Language != "" {
		return in.Language
	}
	return s.config.Fingerprint.Language
}

func formatOutput(data output.Renderable, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewFormatterTo(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func toolResult(data output.Renderable, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// Tool handlers

func (s *Server) handleCompareFiles(ctx context.Context, req *mcp.CallToolRequest, input CompareFilesInput) (*mcp.CallToolResult, any, error) {
	if input.FileA == "" || input.FileB == "" {
		return toolError("file_a and file_b are required")
	}

	src := source.NewFilesystem("")
	res, err := s.detect.ComparePair(ctx,
		detect.Input{Path: input.FileA, Source: src},
		detect.Input{Path: input.FileB, Source: src},
		detect.PairOptions{
			Language:    s.language(input.ThresholdInput),
			Fingerprint: s.fingerprintOptions(input.ThresholdInput),
			Snippets:    input.Snippets,
		})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report.NewPair(res), getFormat(input.Format))
}

func (s *Server) handleCompareDirectory(ctx context.Context, req *mcp.CallToolRequest, input CompareDirectoryInput) (*mcp.CallToolResult, any, error) {
	scanner := scannerSvc.New(scannerSvc.WithConfig(s.config))
	scanResult, err := scanner.ScanPaths(getPaths(input.Paths))
	if err != nil {
		return toolError(err.Error())
	}
	language := s.language(input.ThresholdInput)
	if language != "" {
		if err := scanner.RestrictToLanguage(scanResult, language); err != nil {
			return toolError(err.Error())
		}
	}
	if len(scanResult.Files) < 2 {
		return toolError("need at least two source files to compare")
	}

	minSimilarity := s.config.Report.MinSimilarity
	if input.MinSimilarity > 0 {
		minSimilarity = input.MinSimilarity
	}
	top := s.config.Report.Top
	if input.Top > 0 {
		top = input.Top
	}

	res, err := s.detect.Matrix(ctx, scanResult.Files, source.NewFilesystem(""), detect.MatrixOptions{
		Language:      language,
		Fingerprint:   s.fingerprintOptions(input.ThresholdInput),
		MinSimilarity: minSimilarity,
		Top:           top,
	})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report.NewMatrix(res), getFormat(input.Format))
}

func (s *Server) handleListLanguages(ctx context.Context, req *mcp.CallToolRequest, input ListLanguagesInput) (*mcp.CallToolResult, any, error) {
	reg := s.detect.Registry()
	var langs []LanguageInfo
	for _, lang := range reg.Languages() {
		aliases := reg.AliasesOf(lang)
		if aliases == nil {
			aliases = []string{}
		}
		langs = append(langs, LanguageInfo{Name: string(lang), Aliases: aliases})
	}
	return toolResult(output.NewTable("Languages", []string{"Language", "Aliases"}, nil, nil, langs), output.FormatJSON)
}
