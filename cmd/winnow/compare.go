package main

import (
	"fmt"

	"github.com/panbanda/winnow/internal/report"
	"github.com/panbanda/winnow/internal/service/detect"
	"github.com/panbanda/winnow/pkg/source"
	"github.com/urfave/cli/v2"
)

func compareCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "base",
			Usage: "Directory relative paths are resolved against",
		},
		&cli.StringFlag{
			Name:  "rev-a",
			Usage: "Read FILE_A as of a git revision",
		},
		&cli.StringFlag{
			Name:  "rev-b",
			Usage: "Read FILE_B as of a git revision",
		},
		&cli.BoolFlag{
			Name:  "no-snippets",
			Usage: "Omit matched source text from the report",
		},
	}

	return &cli.Command{
		Name:      "compare",
		Aliases:   []string{"cmp"},
		Usage:     "Compare two files and show the regions they share",
		ArgsUsage: "FILE_A FILE_B",
		Description: `Fingerprints both files with the same thresholds and reports, for each
file, the fraction of its selected fingerprint found in the other file.

Examples:
  winnow compare a.py b.py
  winnow compare -t 30 -k 10 old/util.go new/util.go
  winnow compare --rev-a HEAD~5 src/app.js src/app.js`,
		Flags:  append(thresholdFlags(), flags...),
		Action: runCompareCmd,
	}
}

func runCompareCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("compare requires exactly two files, got %d", c.Args().Len())
	}
	st, err := loadState(c)
	if err != nil {
		return err
	}
	cfg := st.config

	base := c.String("base")
	srcA, err := contentSource(base, c.String("rev-a"))
	if err != nil {
		return err
	}
	srcB, err := contentSource(base, c.String("rev-b"))
	if err != nil {
		return err
	}

	fpOpts, language := fingerprintOptions(c, cfg)
	snippets := cfg.Report.Snippets
	if c.IsSet("no-snippets") {
		snippets = !c.Bool("no-snippets")
	}

	svc := detect.New(detect.WithLogger(st.logger), detect.WithCache(st.cache), detect.WithWorkers(cfg.Workers.Max))
	result, err := svc.ComparePair(c.Context,
		detect.Input{Path: c.Args().Get(0), Source: srcA},
		detect.Input{Path: c.Args().Get(1), Source: srcB},
		detect.PairOptions{Language: language, Fingerprint: fpOpts, Snippets: snippets})
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(report.NewPair(result))
}

// contentSource returns the working tree under base, or the tree of rev.
func contentSource(base, rev string) (source.ContentSource, error) {
	if rev == "" {
		return source.NewFilesystem(base), nil
	}
	return source.OpenRevision(base, rev)
}
