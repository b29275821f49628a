// Package scanner resolves command-line paths into the files a matrix run compares.
package scanner

import (
	"path/filepath"
	"strings"

	"github.com/panbanda/winnow/internal/scanner"
	"github.com/panbanda/winnow/internal/vcs"
	"github.com/panbanda/winnow/pkg/config"
	"github.com/panbanda/winnow/pkg/parser"
)

// ScanResult contains the result of a file scan.
type ScanResult struct {
	Files          []string
	LanguageGroups map[parser.Language][]string
	// Oversized counts files dropped by exclude.max_file_size.
	Oversized int
	RepoRoot  string
}

// Service provides file scanning functionality.
type Service struct {
	config *config.Config
	opener vcs.Opener
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// New creates a new scanner service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.DefaultConfig(),
		opener: vcs.DefaultOpener(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanPaths scans multiple paths and returns all comparable source files.
// No paths means the current directory.
func (s *Service) ScanPaths(paths []string) (*ScanResult, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	abs := make([]string, len(paths))
	for i, path := range paths {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
		abs[i] = p
	}

	scan := scanner.NewScanner(s.config)
	files, err := scan.ScanPaths(abs)
	if err != nil {
		return nil, &ScanError{Paths: paths, Err: err}
	}
	files, oversized := scanner.FilterBySize(files, s.config.Exclude.MaxFileSize)

	return &ScanResult{
		Files:          files,
		LanguageGroups: scan.GroupByLanguage(files),
		Oversized:      oversized,
	}, nil
}

// RestrictToLanguage keeps only the files of the named language or alias.
// An unknown name returns an error wrapping parser.ErrUnknownLanguage.
func (s *Service) RestrictToLanguage(result *ScanResult, name string) error {
	lang, err := parser.ParseLanguage(name)
	if err != nil {
		return err
	}
	scan := scanner.NewScanner(s.config)
	result.Files = scan.FilterByLanguage(result.Files, lang)
	result.LanguageGroups = scan.GroupByLanguage(result.Files)
	return nil
}

// ScanPathsForGit scans paths and also resolves the enclosing git repository.
// Returns a *GitError when the first path is not inside a repository.
func (s *Service) ScanPathsForGit(paths []string) (*ScanResult, error) {
	result, err := s.ScanPaths(paths)
	if err != nil {
		return nil, err
	}

	start := "."
	if len(paths) > 0 {
		start = paths[0]
	}
	repoRoot, err := s.findGitRoot(start)
	if err != nil {
		return nil, &GitError{Err: err}
	}
	result.RepoRoot = repoRoot
	return result, nil
}

func (s *Service) findGitRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	repo, err := s.opener.PlainOpenWithDetect(absPath)
	if err != nil {
		return "", err
	}
	return repo.RepoPath(), nil
}

// PathError indicates an invalid path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Paths []string
	Err   error
}

func (e *ScanError) Error() string {
	return "failed to scan " + strings.Join(e.Paths, ", ") + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// GitError indicates the path is not a git repository.
type GitError struct {
	Err error
}

func (e *GitError) Error() string {
	return "not a git repository (or any parent): " + e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}
