package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/winnow/pkg/fingerprint"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for winnow.
type Config struct {
	// Fingerprint thresholds and normalization
	Fingerprint FingerprintConfig `koanf:"fingerprint" toml:"fingerprint"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Report settings
	Report ReportConfig `koanf:"report" toml:"report"`

	// Logging
	Log LogConfig `koanf:"log" toml:"log"`

	// Parallelism
	Workers WorkersConfig `koanf:"workers" toml:"workers"`

	// Token cache
	Cache CacheConfig `koanf:"cache" toml:"cache"`
}

// FingerprintConfig controls fingerprint generation.
type FingerprintConfig struct {
	GuaranteeThreshold int    `koanf:"guarantee_threshold" toml:"guarantee_threshold"`
	NoiseThreshold     int    `koanf:"noise_threshold" toml:"noise_threshold"`
	IgnoreComments     bool   `koanf:"ignore_comments" toml:"ignore_comments"`
	Language           string `koanf:"language" toml:"language"` // empty = detect from extension
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
	// MaxFileSize skips larger files in directory scans (0 = no limit).
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Format        string  `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color         bool    `koanf:"color" toml:"color"`
	Snippets      bool    `koanf:"snippets" toml:"snippets"`
	MinSimilarity float64 `koanf:"min_similarity" toml:"min_similarity"`
	Top           int     `koanf:"top" toml:"top"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level" toml:"level"`
	File  string `koanf:"file" toml:"file"` // empty = stderr
}

// WorkersConfig controls parallelism.
type WorkersConfig struct {
	Max int `koanf:"max" toml:"max"` // 0 = 2x NumCPU
}

// CacheConfig controls the on-disk token cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours, 0 = never expire
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fingerprint: FingerprintConfig{
			GuaranteeThreshold: fingerprint.DefaultGuaranteeThreshold,
			NoiseThreshold:     fingerprint.DefaultNoiseThreshold,
			IgnoreComments:     false,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".winnow",
				"dist",
				"build",
				"__pycache__",
			},
			Gitignore:   true,
			MaxFileSize: 1 << 20,
		},
		Report: ReportConfig{
			Format:        "text",
			Color:         true,
			Snippets:      true,
			MinSimilarity: 0.5,
			Top:           20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".winnow/cache",
			TTL:     24 * 7,
		},
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched by LoadOrDefault, in order.
var configNames = []string{
	"winnow.toml",
	"winnow.yaml",
	"winnow.yml",
	"winnow.json",
	".winnow.toml",
	".winnow.yaml",
	".winnow.yml",
	".winnow.json",
}

// searchDirs are the directories searched by LoadOrDefault, in order.
var searchDirs = []string{".", ".winnow"}

// Find returns the first config file present in the standard locations, or "".
func Find() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := Find(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// LoadResult is a loaded configuration and where it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath loads a specific file instead of searching the standard locations.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads and validates configuration. Unlike LoadOrDefault it
// reports load and validation errors.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		path = Find()
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// Validate checks threshold and report settings.
func (c *Config) Validate() error {
	fp := c.Fingerprint
	if fp.NoiseThreshold < 1 {
		return fmt.Errorf("%w: fingerprint.noise_threshold must be at least 1, got %d", ErrInvalidConfig, fp.NoiseThreshold)
	}
	if fp.GuaranteeThreshold < fp.NoiseThreshold {
		return fmt.Errorf("%w: fingerprint.guarantee_threshold (%d) must not be below noise_threshold (%d)",
			ErrInvalidConfig, fp.GuaranteeThreshold, fp.NoiseThreshold)
	}
	if c.Report.MinSimilarity < 0 || c.Report.MinSimilarity > 1 {
		return fmt.Errorf("%w: report.min_similarity must be within [0,1], got %g", ErrInvalidConfig, c.Report.MinSimilarity)
	}
	if c.Report.Top < 0 {
		return fmt.Errorf("%w: report.top must not be negative, got %d", ErrInvalidConfig, c.Report.Top)
	}
	if c.Exclude.MaxFileSize < 0 {
		return fmt.Errorf("%w: exclude.max_file_size must not be negative, got %d", ErrInvalidConfig, c.Exclude.MaxFileSize)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative, got %d", ErrInvalidConfig, c.Cache.TTL)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir must be set when the cache is enabled", ErrInvalidConfig)
	}
	if c.Workers.Max < 0 {
		return fmt.Errorf("%w: workers.max must not be negative, got %d", ErrInvalidConfig, c.Workers.Max)
	}
	return nil
}

// FingerprintOptions converts the fingerprint section to generation options.
func (c *Config) FingerprintOptions() fingerprint.Options {
	return fingerprint.Options{
		GuaranteeThreshold: c.Fingerprint.GuaranteeThreshold,
		NoiseThreshold:     c.Fingerprint.NoiseThreshold,
		IgnoreComments:     c.Fingerprint.IgnoreComments,
	}
}

// ShouldExclude checks if a path should be excluded from comparison.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check extension exclusions
	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
