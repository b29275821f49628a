package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/panbanda/winnow/pkg/source"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func TestWorkers(t *testing.T) {
	if got := Workers(3); got != 3 {
		t.Errorf("Workers(3) = %d, want 3", got)
	}
	if got := Workers(0); got < DefaultWorkerMultiplier {
		t.Errorf("Workers(0) = %d, want at least %d", got, DefaultWorkerMultiplier)
	}
}

func TestMap_PreservesOrder(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}

	var progress atomic.Int32
	results, errs := Map(context.Background(), items, 8, func(_ context.Context, n int) (string, error) {
		return fmt.Sprintf("item-%d", n), nil
	}, func() { progress.Add(1) })

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if want := fmt.Sprintf("item-%d", i); r != want {
			t.Errorf("results[%d] = %q, want %q", i, r, want)
		}
		if errs[i] != nil {
			t.Errorf("errs[%d] = %v, want nil", i, errs[i])
		}
	}
	if got := progress.Load(); got != int32(len(items)) {
		t.Errorf("progress called %d times, want %d", got, len(items))
	}
}

func TestMap_Empty(t *testing.T) {
	results, errs := Map(context.Background(), []int(nil), 0, func(context.Context, int) (int, error) {
		t.Error("fn should not be called")
		return 0, nil
	}, nil)
	if results != nil || errs != nil {
		t.Errorf("Map(nil) = %v, %v; want nil, nil", results, errs)
	}
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, errs := Map(ctx, []int{1, 2, 3}, 1, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	}, nil)

	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancellation", calls.Load())
	}
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("errs[%d] = %v, want context.Canceled", i, err)
		}
	}
}

func TestMapFiles_CollectsErrors(t *testing.T) {
	files := []string{"c.py", "a.py", "b.py", "d.py"}
	boom := errors.New("boom")

	results, errs := MapFiles(context.Background(), files, 2, func(_ context.Context, path string) (int, error) {
		if path == "c.py" || path == "a.py" {
			return 0, boom
		}
		return len(path), nil
	}, nil)

	if results[2] != 4 || results[3] != 4 {
		t.Errorf("results = %v, want successes in their slots", results)
	}
	if results[0] != 0 || results[1] != 0 {
		t.Errorf("failed slots should hold the zero value, got %v", results)
	}

	if !errs.HasErrors() || errs.Len() != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs.Errors[0].Path != "a.py" || errs.Errors[1].Path != "c.py" {
		t.Errorf("errors not sorted by path: %v", errs.Errors)
	}
	if !errors.Is(errs, boom) {
		t.Error("errors.Is should see through ProcessingErrors")
	}
	if !strings.Contains(errs.Error(), "2 files failed") {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func TestMapFiles_NoErrors(t *testing.T) {
	_, errs := MapFiles(context.Background(), []string{"x"}, 0, func(context.Context, string) (int, error) {
		return 1, nil
	}, nil)
	if errs != nil {
		t.Errorf("errs = %v, want nil", errs)
	}
	if errs.HasErrors() {
		t.Error("nil ProcessingErrors should report no errors")
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}
	if errs.HasErrors() {
		t.Error("new ProcessingErrors should have no errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("Error() = %q", errs.Error())
	}

	errs.Add("file1.go", errors.New("parse failed"))
	if errs.Error() != "file1.go: parse failed" {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func TestMapSourceFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "one.py", "x = 1\n")
	createTestFile(t, tmpDir, "two.py", "y = 22\n")

	src := source.NewFilesystem(tmpDir)
	results, errs := MapSourceFiles(context.Background(), []string{"one.py", "missing.py", "two.py"}, src, 0,
		func(_ context.Context, path string, content []byte) (int, error) {
			return len(content), nil
		}, nil)

	if results[0] != 6 || results[2] != 7 {
		t.Errorf("results = %v", results)
	}
	if errs.Len() != 1 || errs.Errors[0].Path != "missing.py" {
		t.Fatalf("errs = %v", errs)
	}
	if !errors.Is(errs, source.ErrIO) {
		t.Error("read failures should match source.ErrIO")
	}
}
