// Package vcs provides version control system abstractions.
package vcs

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository provides access to git repository operations.
type Repository interface {
	// Resolve returns the commit a revision (branch, tag, SHA, HEAD~n) points to.
	Resolve(rev string) (Commit, error)
	// RepoPath returns the root path of the working tree.
	RepoPath() string
}

// Commit represents a git commit.
type Commit interface {
	// Hash returns the commit hash.
	Hash() plumbing.Hash
	// Tree returns the tree object for this commit.
	Tree() (Tree, error)
}

// TreeEntry represents a file in a git tree.
type TreeEntry struct {
	Path string
	Size int64
}

// Tree represents a git tree object.
type Tree interface {
	// File returns the content of the file at the slash-separated path.
	File(path string) ([]byte, error)
	// Entries returns all files in the tree (recursively).
	Entries() ([]TreeEntry, error)
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpen opens an existing git repository.
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
	PlainOpenWithDetect(path string) (Repository, error)
}
