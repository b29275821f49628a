package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/panbanda/winnow/internal/progress"
	"github.com/panbanda/winnow/internal/report"
	"github.com/panbanda/winnow/internal/service/detect"
	scannerSvc "github.com/panbanda/winnow/internal/service/scanner"
	"github.com/panbanda/winnow/pkg/source"
	"github.com/urfave/cli/v2"
)

func matrixCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.Float64Flag{
			Name:  "min-similarity",
			Usage: "Report pairs scoring at least this (0.0-1.0, default from config)",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "Report at most this many pairs, 0 for all (default from config)",
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "Parallel workers (default from config, 0 = 2x CPUs)",
		},
		&cli.StringFlag{
			Name:  "rev",
			Usage: "Read files as of a git revision",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Hide progress bars",
		},
	}

	return &cli.Command{
		Name:      "matrix",
		Aliases:   []string{"scan"},
		Usage:     "Compare every pair of same-language files under the given paths",
		ArgsUsage: "[path...]",
		Description: `Scans the paths, fingerprints each file once and compares every pair of
files in the same language. Pairs are ranked by score, the larger of the two
similarities, and files linked by reported pairs are grouped into clusters.

Examples:
  winnow matrix ./submissions
  winnow matrix --min-similarity 0.7 --top 10 src/ lib/
  winnow -f json matrix --rev v1.2.0 .`,
		Flags:  append(thresholdFlags(), flags...),
		Action: runMatrixCmd,
	}
}

func runMatrixCmd(c *cli.Context) error {
	st, err := loadState(c)
	if err != nil {
		return err
	}
	cfg := st.config

	paths := getPaths(c)
	scanSvc := scannerSvc.New(scannerSvc.WithConfig(cfg))
	fpOpts, language := fingerprintOptions(c, cfg)
	showProgress := textProgress(c, cfg)

	var spinner *progress.Tracker
	if showProgress {
		spinner = progress.NewSpinner("Scanning")
	}
	rev := c.String("rev")
	var scanResult *scannerSvc.ScanResult
	if rev != "" {
		scanResult, err = scanSvc.ScanPathsForGit(paths)
	} else {
		scanResult, err = scanSvc.ScanPaths(paths)
	}
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()
	if scanResult.Oversized > 0 {
		st.logger.Info("skipped oversized files", "count", scanResult.Oversized, "max_file_size", cfg.Exclude.MaxFileSize)
	}
	if language != "" {
		scanned := len(scanResult.Files)
		if err := scanSvc.RestrictToLanguage(scanResult, language); err != nil {
			return err
		}
		st.logger.Debug("filtered by language", "language", language, "kept", len(scanResult.Files), "scanned", scanned)
	}

	if len(scanResult.Files) < 2 {
		color.Yellow("Need at least two source files to compare, found %d", len(scanResult.Files))
		return nil
	}

	var src source.ContentSource = source.NewFilesystem("")
	if rev != "" {
		src, err = source.OpenRevision(scanResult.RepoRoot, rev)
		if err != nil {
			return err
		}
	}

	minSimilarity := cfg.Report.MinSimilarity
	if c.IsSet("min-similarity") {
		minSimilarity = c.Float64("min-similarity")
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return fmt.Errorf("--min-similarity must be within [0,1], got %g", minSimilarity)
	}
	top := cfg.Report.Top
	if c.IsSet("top") {
		top = c.Int("top")
	}
	workers := cfg.Workers.Max
	if c.IsSet("jobs") {
		workers = c.Int("jobs")
	}

	opts := []detect.Option{detect.WithLogger(st.logger), detect.WithCache(st.cache), detect.WithWorkers(workers)}
	if showProgress {
		opts = append(opts, detect.WithProgress(os.Stderr))
	}
	svc := detect.New(opts...)

	result, err := svc.Matrix(c.Context, scanResult.Files, src, detect.MatrixOptions{
		Language:      language,
		Fingerprint:   fpOpts,
		MinSimilarity: minSimilarity,
		Top:           top,
	})
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(report.NewMatrix(result))
}
