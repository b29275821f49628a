// Package source reads document content from the filesystem or from a git revision.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panbanda/winnow/internal/vcs"
)

// ErrIO is matched by every read failure.
var ErrIO = errors.New("read failed")

// ReadError reports which document could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is matches ErrIO.
func (e *ReadError) Is(target error) bool { return target == ErrIO }

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
	// Name describes where content comes from.
	Name() string
}

// FilesystemSource reads files from the local filesystem.
// Relative paths are resolved against the base directory when one is set.
type FilesystemSource struct {
	base string
}

// NewFilesystem creates a source that reads from the filesystem under base.
// An empty base leaves paths as given.
func NewFilesystem(base string) *FilesystemSource {
	return &FilesystemSource{base: base}
}

// Resolve returns the filesystem path Read would open.
func (f *FilesystemSource) Resolve(path string) string {
	return resolve(f.base, path)
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	resolved := f.Resolve(path)
	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &ReadError{Path: resolved, Err: err}
	}
	return content, nil
}

// Name implements ContentSource.
func (f *FilesystemSource) Name() string {
	return "filesystem"
}

// TreeSource reads files from a git tree.
// It is safe for concurrent use by multiple goroutines.
type TreeSource struct {
	tree  vcs.Tree
	root  string
	base  string
	label string
	mu    sync.Mutex
}

// NewTree creates a source that reads from a git tree whose working tree is rooted at root.
func NewTree(tree vcs.Tree, root, base, label string) *TreeSource {
	return &TreeSource{tree: tree, root: root, base: base, label: label}
}

// OpenRevision opens the repository containing base (or the working
// directory) and returns a source reading files as of rev.
func OpenRevision(base, rev string) (*TreeSource, error) {
	dir := base
	if dir == "" {
		dir = "."
	}
	repo, err := vcs.DefaultOpener().PlainOpenWithDetect(dir)
	if err != nil {
		return nil, &ReadError{Path: dir, Err: fmt.Errorf("open repository: %w", err)}
	}
	commit, err := repo.Resolve(rev)
	if err != nil {
		return nil, &ReadError{Path: dir, Err: err}
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, &ReadError{Path: dir, Err: fmt.Errorf("load tree for %s: %w", rev, err)}
	}
	label := fmt.Sprintf("git:%s@%s", rev, commit.Hash().String()[:7])
	return NewTree(tree, repo.RepoPath(), base, label), nil
}

// Read implements ContentSource.
// It is safe for concurrent use.
func (t *TreeSource) Read(path string) ([]byte, error) {
	rel, err := t.repoPath(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	content, err := t.tree.File(rel)
	if err != nil {
		return nil, &ReadError{Path: t.label + ":" + rel, Err: err}
	}
	return content, nil
}

// Name implements ContentSource.
func (t *TreeSource) Name() string {
	return t.label
}

// repoPath converts a filesystem path into a slash-separated path relative to the repository root.
func (t *TreeSource) repoPath(path string) (string, error) {
	abs, err := filepath.Abs(resolve(t.base, path))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(t.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", abs, t.root)
	}
	return filepath.ToSlash(rel), nil
}

func resolve(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
