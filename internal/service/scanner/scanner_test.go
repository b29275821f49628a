package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/panbanda/winnow/pkg/config"
	"github.com/panbanda/winnow/pkg/parser"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := New(WithConfig(cfg))
	if svc.config != cfg {
		t.Error("WithConfig did not set config")
	}
	if svc.opener == nil {
		t.Error("opener should default to the git opener")
	}
}

func TestScanPaths_InvalidPath(t *testing.T) {
	_, err := New().ScanPaths([]string{"/nonexistent/path/that/does/not/exist"})
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *ScanError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestScanPaths_LanguageGroups(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "sub", "b.py"), "y = 2\n")
	writeFile(t, filepath.Join(dir, "c.js"), "let z = 3;\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# readme\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.js"), "module.exports = 1;\n")

	result, err := New().ScanPaths([]string{dir})
	if err != nil {
		t.Fatalf("ScanPaths() error = %v", err)
	}
	if len(result.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", result.Files)
	}
	if got := len(result.LanguageGroups[parser.LangPython]); got != 2 {
		t.Errorf("python group size = %d, want 2", got)
	}
	if got := len(result.LanguageGroups[parser.LangJavaScript]); got != 1 {
		t.Errorf("javascript group size = %d, want 1", got)
	}
	for _, f := range result.Files {
		if strings.Contains(f, "node_modules") {
			t.Errorf("excluded dir scanned: %s", f)
		}
	}
}

func TestRestrictToLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "b.py"), "y = 2\n")
	writeFile(t, filepath.Join(dir, "c.js"), "let z = 3;\n")

	svc := New()
	result, err := svc.ScanPaths([]string{dir})
	if err != nil {
		t.Fatalf("ScanPaths() error = %v", err)
	}
	if err := svc.RestrictToLanguage(result, "Py"); err != nil {
		t.Fatalf("RestrictToLanguage() error = %v", err)
	}
	if len(result.Files) != 2 {
		t.Errorf("expected 2 python files, got %v", result.Files)
	}
	if _, ok := result.LanguageGroups[parser.LangJavaScript]; ok {
		t.Error("javascript group should be dropped")
	}

	if err := svc.RestrictToLanguage(result, "cobol"); !errors.Is(err, parser.ErrUnknownLanguage) {
		t.Errorf("RestrictToLanguage(cobol) error = %v, want ErrUnknownLanguage", err)
	}
	if len(result.Files) != 2 {
		t.Errorf("unknown language should leave files untouched, got %v", result.Files)
	}
}

func TestScanPaths_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "small.py"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "big.py"), strings.Repeat("x = 1\n", 100))

	cfg := config.DefaultConfig()
	cfg.Exclude.MaxFileSize = 64
	result, err := New(WithConfig(cfg)).ScanPaths([]string{dir})
	if err != nil {
		t.Fatalf("ScanPaths() error = %v", err)
	}
	if len(result.Files) != 1 || filepath.Base(result.Files[0]) != "small.py" {
		t.Errorf("Files = %v, want only small.py", result.Files)
	}
	if result.Oversized != 1 {
		t.Errorf("Oversized = %d, want 1", result.Oversized)
	}
}

func TestScanPathsForGit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.py"), "x = 1\n")

	if _, err := New().ScanPathsForGit([]string{dir}); err == nil {
		t.Fatal("expected error outside a repository")
	} else {
		var gitErr *GitError
		if !errors.As(err, &gitErr) {
			t.Errorf("expected *GitError, got %T", err)
		}
	}

	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}
	result, err := New().ScanPathsForGit([]string{dir})
	if err != nil {
		t.Fatalf("ScanPathsForGit() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(result.RepoRoot)
	if got != want {
		t.Errorf("RepoRoot = %s, want %s", result.RepoRoot, dir)
	}
	if len(result.Files) != 1 {
		t.Errorf("Files = %v", result.Files)
	}
}

func TestErrorMessages(t *testing.T) {
	base := errors.New("boom")
	if got := (&PathError{Path: "x", Err: base}).Error(); got != "invalid path x: boom" {
		t.Errorf("PathError = %q", got)
	}
	if got := (&ScanError{Paths: []string{"a", "b"}, Err: base}).Error(); got != "failed to scan a, b: boom" {
		t.Errorf("ScanError = %q", got)
	}
	if !errors.Is(&GitError{Err: base}, base) {
		t.Error("GitError should unwrap")
	}
}
