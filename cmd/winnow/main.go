package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/panbanda/winnow/internal/cache"
	"github.com/panbanda/winnow/internal/logging"
	"github.com/panbanda/winnow/internal/output"
	"github.com/panbanda/winnow/pkg/config"
	"github.com/panbanda/winnow/pkg/fingerprint"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

const stateKey = "state"

// appState is the configuration and logger shared by every command.
type appState struct {
	config    *config.Config
	source    string
	logger    *slog.Logger
	logCloser io.Closer
	cache     *cache.Cache
}

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "winnow",
		Usage:    "Find copied and lightly edited source code",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `Winnow fingerprints source files with the winnowing algorithm and reports
the regions two documents share. Identifiers and literals are normalized away,
so renaming variables or changing constants does not hide a copy.

Supports: Go, Rust, Python, TypeScript, JavaScript, Java, C, C++, C#, Ruby, PHP, Bash`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"WINNOW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the token cache",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to a rotated file instead of stderr",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		After: func(c *cli.Context) error {
			if st, ok := c.App.Metadata[stateKey].(*appState); ok && st.logCloser != nil {
				return st.logCloser.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			compareCmd(),
			matrixCmd(),
			languagesCmd(),
			initCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// loadState loads configuration and builds the logger once per run.
// Commands that only inspect configuration call config.LoadConfig directly.
func loadState(c *cli.Context) (*appState, error) {
	if st, ok := c.App.Metadata[stateKey].(*appState); ok {
		return st, nil
	}

	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if c.Bool("verbose") {
		level = "debug"
	}

	st := &appState{config: cfg, source: result.Source}
	var w io.Writer = c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logFile := cfg.Log.File
	if c.IsSet("log-file") {
		logFile = c.String("log-file")
	}
	if logFile != "" {
		fw := logging.FileWriter(logFile)
		st.logCloser = fw
		w = fw
	}
	st.logger = logging.NewLogger(level, w)
	if result.Source != "" {
		st.logger.Debug("loaded config", "path", result.Source)
	}

	st.cache, err = cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !c.Bool("no-cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
	}

	c.App.Metadata[stateKey] = st
	return st, nil
}

// newFormatter builds the formatter selected by --format, --output and the
// report section of the config.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := cfg.Report.Format
	if c.IsSet("format") {
		format = c.String("format")
	}
	colored := cfg.Report.Color && !c.Bool("no-color")
	return output.NewFormatter(output.ParseFormat(format), c.String("output"), colored)
}

// textProgress reports whether progress bars should be drawn.
func textProgress(c *cli.Context, cfg *config.Config) bool {
	if c.Bool("no-progress") || c.String("output") != "" {
		return false
	}
	format := cfg.Report.Format
	if c.IsSet("format") {
		format = c.String("format")
	}
	return output.ParseFormat(format) == output.FormatText
}

// thresholdFlags are the fingerprint flags shared by compare and matrix.
func thresholdFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "guarantee",
			Aliases: []string{"t"},
			Usage:   "Guarantee threshold: matches at least this long are always found (default from config)",
		},
		&cli.IntFlag{
			Name:    "noise",
			Aliases: []string{"k"},
			Usage:   "Noise threshold: matches shorter than this are ignored (default from config)",
		},
		&cli.StringFlag{
			Name:    "language",
			Aliases: []string{"l"},
			Usage:   "Language name or alias (default: detect from file extension)",
		},
		&cli.BoolFlag{
			Name:  "ignore-comments",
			Usage: "Drop comments before fingerprinting",
		},
	}
}

// fingerprintOptions layers threshold flags over the config.
func fingerprintOptions(c *cli.Context, cfg *config.Config) (fingerprint.Options, string) {
	opts := cfg.FingerprintOptions()
	if c.IsSet("guarantee") {
		opts.GuaranteeThreshold = c.Int("guarantee")
	}
	if c.IsSet("noise") {
		opts.NoiseThreshold = c.Int("noise")
	}
	if c.IsSet("ignore-comments") {
		opts.IgnoreComments = c.Bool("ignore-comments")
	}
	language := cfg.Fingerprint.Language
	if c.IsSet("language") {
		language = c.String("language")
	}
	return opts, language
}
