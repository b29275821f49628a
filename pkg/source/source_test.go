package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem("")

	// Read a file that exists
	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/panbanda/winnow")
	assert.Equal(t, "filesystem", src.Name())

	// Non-existent file should error
	_, err = src.Read("nonexistent.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, "nonexistent.txt", readErr.Path)
}

func TestFilesystemSource_Base(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644))

	src := NewFilesystem(dir)
	assert.Equal(t, filepath.Join(dir, "a.py"), src.Resolve("a.py"))

	content, err := src.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	// Absolute paths ignore the base.
	abs := filepath.Join(dir, "a.py")
	assert.Equal(t, abs, NewFilesystem("/elsewhere").Resolve(abs))
}

func TestTreeSource(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	file := filepath.Join(dir, "pkg", "mod.py")
	require.NoError(t, os.WriteFile(file, []byte("old = 1\n"), 0o644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("pkg/mod.py")
	require.NoError(t, err)
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// The working copy diverges from the committed revision.
	require.NoError(t, os.WriteFile(file, []byte("new = 2\n"), 0o644))

	src, err := OpenRevision(dir, "HEAD")
	require.NoError(t, err)
	assert.Contains(t, src.Name(), "git:HEAD@")

	var _ ContentSource = src

	content, err := src.Read(filepath.Join("pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "old = 1\n", string(content))

	content, err = src.Read(file)
	require.NoError(t, err)
	assert.Equal(t, "old = 1\n", string(content))

	_, err = src.Read("pkg/missing.py")
	assert.ErrorIs(t, err, ErrIO)

	_, err = src.Read(filepath.Join(dir, "..", "outside.py"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestOpenRevision_NotARepository(t *testing.T) {
	_, err := OpenRevision(t.TempDir(), "HEAD")
	assert.ErrorIs(t, err, ErrIO)
}
